package grpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

func TestServiceDesc_Registration(t *testing.T) {
	srv := grpc.NewServer()
	RegisterAirdropServiceServer(srv, NewServer(nil))

	info, ok := srv.GetServiceInfo()[ServiceName]
	require.True(t, ok)
	assert.Len(t, info.Methods, 12)
	assert.Equal(t, "", info.Metadata, "no proto file is advertised for the service")
}
