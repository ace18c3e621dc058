//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	grpcadapter "github.com/simaogato/tokendrop-backend/internal/adapter/grpc"
)

var (
	grpcConn   *grpc.ClientConn
	grpcClient *grpcadapter.Client
)

// TestMain connects to a server started with TOKENDROP_SESSION_ACCOUNT set
func TestMain(m *testing.M) {
	var err error
	grpcConn, err = grpc.NewClient(getGRPCAddress(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to gRPC server: %v", err))
	}

	grpcClient = grpcadapter.NewClient(grpcConn)

	code := m.Run()
	grpcConn.Close()
	os.Exit(code)
}

func getGRPCAddress() string {
	if addr := os.Getenv("GRPC_ADDRESS"); addr != "" {
		return addr
	}
	return "localhost:8080"
}

func getAPIToken() string {
	if token := os.Getenv("API_TOKEN"); token != "" {
		return token
	}
	return "dev-token"
}

func authContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return metadata.AppendToOutgoingContext(ctx, "authorization", getAPIToken())
}

func call(t *testing.T, ctx context.Context, method string, fields map[string]any) *structpb.Struct {
	t.Helper()
	resp, err := grpcClient.Call(ctx, method, fields)
	require.NoError(t, err, "%s failed", method)
	return resp
}

// uniqueCSV builds recipients that do not collide across test runs
func uniqueCSV(n int) string {
	seed := time.Now().UnixNano()
	csv := "address,amount\n"
	for i := 0; i < n; i++ {
		csv += fmt.Sprintf("0x%040x,%d.5\n", seed+int64(i), i+1)
	}
	return csv
}

func TestHealth(t *testing.T) {
	resp, err := healthpb.NewHealthClient(grpcConn).Check(context.Background(), &healthpb.HealthCheckRequest{
		Service: grpcadapter.ServiceName,
	})

	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestUnauthenticated(t *testing.T) {
	_, err := grpcClient.Call(context.Background(), "ListRuns", map[string]any{})

	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestAirdropEndToEnd(t *testing.T) {
	ctx := authContext(t)

	// Upload with one invalid row
	resp := call(t, ctx, "UploadRecipients", map[string]any{
		"content": uniqueCSV(3) + "not-an-address,1\n",
	})
	uploadID := resp.GetFields()["upload_id"].GetStringValue()
	report := resp.GetFields()["report"].GetStructValue().GetFields()
	assert.Equal(t, 3, int(report["valid"].GetNumberValue()))
	assert.Equal(t, 1, int(report["invalid_address"].GetNumberValue()))

	// Drop the invalid row and wait for re-validation
	call(t, ctx, "RemoveRow", map[string]any{"upload_id": uploadID, "line": 5})
	require.Eventually(t, func() bool {
		var err error
		resp, err = grpcClient.Call(ctx, "GetReport", map[string]any{"upload_id": uploadID})
		return err == nil && !resp.GetFields()["validating"].GetBoolValue()
	}, 10*time.Second, 100*time.Millisecond)
	report = resp.GetFields()["report"].GetStructValue().GetFields()
	assert.Equal(t, 3, int(report["total"].GetNumberValue()))

	// Estimate before committing
	resp = call(t, ctx, "EstimateCost", map[string]any{"upload_id": uploadID})
	assert.Equal(t, 3, int(resp.GetFields()["operations"].GetNumberValue()))
	assert.NotEmpty(t, resp.GetFields()["total_cost_with_buffer"].GetStringValue())

	// Run to completion
	resp = call(t, ctx, "StartRun", map[string]any{"upload_id": uploadID})
	runID := resp.GetFields()["run_id"].GetStringValue()

	require.Eventually(t, func() bool {
		var err error
		resp, err = grpcClient.Call(ctx, "GetRun", map[string]any{"run_id": runID})
		if err != nil {
			return false
		}
		switch resp.GetFields()["status"].GetStringValue() {
		case "COMPLETED", "COMPLETED_WITH_ERRORS", "CANCELLED":
			return true
		}
		return false
	}, 25*time.Second, 200*time.Millisecond)

	fields := resp.GetFields()
	assert.Equal(t, 3, int(fields["total"].GetNumberValue()))
	assert.Equal(t, 3, int(fields["completed"].GetNumberValue()), "every operation is accounted for")
	assert.Zero(t, int(fields["unexecuted"].GetNumberValue()))

	if fields["status"].GetStringValue() == "COMPLETED" {
		_, err := grpcClient.Call(ctx, "RetryFailed", map[string]any{"run_id": runID})
		assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	}
}

func TestNotFound(t *testing.T) {
	ctx := authContext(t)

	_, err := grpcClient.Call(ctx, "GetRun", map[string]any{"run_id": "00000000-0000-0000-0000-000000000000"})

	assert.Equal(t, codes.NotFound, status.Code(err))
}
