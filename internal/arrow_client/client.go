package arrow_client

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/pgermishuys/netchat/internal/logger"
)

// DefaultPath is the descriptor path fixtures are published under.
var DefaultPath = []string{"netchat", "fixtures"}

// Publisher ships Arrow records somewhere a verifier can read them.
type Publisher interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, path []string, rec arrow.Record) error
	Close() error
}

// FlightClient publishes records to an Arrow Flight server with DoPut.
type FlightClient struct {
	client  flight.Client
	addr    string
	timeout time.Duration
}

// NewFlightClient creates a client for host:port. Nothing is dialled until
// Connect.
func NewFlightClient(addr string) *FlightClient {
	return &FlightClient{addr: addr, timeout: 30 * time.Second}
}

func (fc *FlightClient) Addr() string { return fc.addr }

// Connect establishes connection to Flight server
func (fc *FlightClient) Connect(ctx context.Context) error {
	client, err := flight.NewClientWithMiddleware(fc.addr, nil, nil,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to create Flight client: %w", err)
	}
	fc.client = client
	return nil
}

// Close disconnects from Flight server
func (fc *FlightClient) Close() error {
	if fc.client != nil {
		err := fc.client.Close()
		fc.client = nil
		return err
	}
	return nil
}

// Publish sends rec as a single-record DoPut stream under path and waits for
// the server to acknowledge it.
func (fc *FlightClient) Publish(ctx context.Context, path []string, rec arrow.Record) error {
	if fc.client == nil {
		return fmt.Errorf("client not connected, call Connect() first")
	}

	ctx, cancel := context.WithTimeout(ctx, fc.timeout)
	defer cancel()

	stream, err := fc.client.DoPut(ctx)
	if err != nil {
		return fmt.Errorf("failed to create DoPut stream: %w", err)
	}

	w := flight.NewRecordWriter(stream, ipc.WithSchema(rec.Schema()))
	w.SetFlightDescriptor(&flight.FlightDescriptor{Type: flight.DescriptorPATH, Path: path})
	if err := w.Write(rec); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("failed to close DoPut stream: %w", err)
	}

	acks := 0
	for {
		_, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("DoPut rejected: %w", err)
		}
		acks++
	}

	logger.Log.Debug("published record", "addr", fc.addr, "path", path, "rows", rec.NumRows(), "acks", acks)
	return nil
}
