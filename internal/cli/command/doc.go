// Package command defines the mirrorsync-cli commands.
//
// It uses urfave/cli/v2. Every command acts on one provider of a registry
// built from the CLI configuration and global flags:
//
//	mirrorsync-cli --dir ./state set theme '"dark"'
//	mirrorsync-cli --backend remote --remote 127.0.0.1:7480 dump -o yaml
//	mirrorsync-cli watch
//
// Values given on the command line are parsed with the configured
// serializer; input it cannot parse is stored as a plain string.
package command
