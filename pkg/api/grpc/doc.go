// Package grpc exposes the standard gRPC health service. Its serving status
// follows the pipeline run status.
package grpc
