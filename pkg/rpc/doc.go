/*
Package rpc defines raftkv's wire messages and gRPC service descriptors.

No protoc is run in this repository: the message types in messages.go are
plain Go structs, encoded over the wire by a JSON codec (codec.go) that this
package registers under its own "raftkv-json" content-subtype, and DialOption
makes every client call declare that subtype so the server resolves it by
name instead of colliding with gRPC's built-in "proto" codec. The service
descriptors in kvservice.go/raftadmin.go are hand-written the way
protoc-gen-go-grpc would emit them. docs/kv.proto at the repository root
records the canonical schema these mirror, for a future real codegen pass.

The result is ordinary google.golang.org/grpc client/server code: dialing,
deadlines, and streaming framing all behave exactly as they would with
generated stubs.
*/
package rpc
