// Package storagev1 describes the mirrorsync storage RPC service.
//
// The service is served with Connect. Messages are the well-known protobuf
// types (structpb.Struct, structpb.ListValue, emptypb.Empty), so no code
// generation step is needed. Field names are the constants in this package.
//
//	Get(Struct{key})            -> Struct{found, value}
//	Set(Struct{key, value})     -> Empty
//	Remove(Struct{key})         -> Empty
//	Keys(Empty)                 -> ListValue[string]
//	Watch(Empty)                -> stream Struct{key, new_value, old_value, removed, origin}
package storagev1
