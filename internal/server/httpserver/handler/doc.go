// Package handler serves the operational endpoints of mirrorsync-server:
// liveness, readiness, build version and backend status.
package handler
