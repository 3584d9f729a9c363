package arrow_client

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgermishuys/netchat/internal/golden"
)

func testFixture(t *testing.T) *golden.Fixture {
	t.Helper()
	f, err := golden.NewFixture(golden.Options{SeqLen: 4, VocabSize: 8, Seed: 42})
	require.NoError(t, err)
	return f
}

func TestFixtureRecordRoundTrip(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)

	f := testFixture(t)
	rec, err := FixtureRecord(mem, f)
	require.NoError(t, err)
	defer rec.Release()

	assert.Equal(t, int64(4), rec.NumRows())
	assert.Equal(t, "position", rec.ColumnName(0))
	assert.Equal(t, golden.InputKey, rec.ColumnName(1))
	assert.Equal(t, golden.LogitsKey, rec.ColumnName(2))

	back, err := FixtureFromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, f.Options, back.Options)
	assert.True(t, f.Input.Equal(back.Input))
	assert.True(t, f.Logits.Equal(back.Logits))
}

func TestFixtureFromRecordMissingMetadata(t *testing.T) {
	mem := memory.NewGoAllocator()
	rec, err := FixtureRecord(mem, testFixture(t))
	require.NoError(t, err)
	defer rec.Release()

	bare := arrow.NewSchema(rec.Schema().Fields(), nil)
	stripped := array.NewRecord(bare, rec.Columns(), rec.NumRows())
	defer stripped.Release()

	_, err = FixtureFromRecord(stripped)
	require.Error(t, err)
	assert.Contains(t, err.Error(), MetaSeqLen)
}

func TestPublishReturnsErrorWhenNotConnected(t *testing.T) {
	client := NewFlightClient("localhost:3000")
	rec, err := FixtureRecord(memory.NewGoAllocator(), testFixture(t))
	require.NoError(t, err)
	defer rec.Release()

	err = client.Publish(context.Background(), DefaultPath, rec)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "not connected"))
}

func TestMockFlightClient(t *testing.T) {
	ctx := context.Background()
	m := NewMockFlightClient()
	defer m.Reset()

	rec, err := FixtureRecord(memory.NewGoAllocator(), testFixture(t))
	require.NoError(t, err)
	defer rec.Release()

	require.Error(t, m.Publish(ctx, DefaultPath, rec), "not connected yet")

	require.NoError(t, m.Connect(ctx))
	require.NoError(t, m.Publish(ctx, DefaultPath, rec))

	got, ok := m.Get(DefaultPath...)
	require.True(t, ok)
	assert.Equal(t, rec.NumRows(), got.NumRows())

	m.FailPublish = true
	require.Error(t, m.Publish(ctx, DefaultPath, rec))
	require.NoError(t, m.Close())
}

// fixtureServer accepts DoPut streams and keeps the decoded fixtures.
type fixtureServer struct {
	flight.BaseFlightServer

	mu       sync.Mutex
	paths    [][]string
	fixtures []*golden.Fixture
}

func (s *fixtureServer) DoPut(stream flight.FlightService_DoPutServer) error {
	rdr, err := flight.NewRecordReader(stream)
	if err != nil {
		return err
	}
	defer rdr.Release()

	desc := rdr.LatestFlightDescriptor()
	for rdr.Next() {
		f, err := FixtureFromRecord(rdr.Record())
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.paths = append(s.paths, desc.GetPath())
		s.fixtures = append(s.fixtures, f)
		s.mu.Unlock()
	}
	if err := rdr.Err(); err != nil {
		return err
	}
	return stream.Send(&flight.PutResult{AppMetadata: []byte("stored")})
}

func TestFlightClientPublishesToServer(t *testing.T) {
	svc := &fixtureServer{}
	srv := flight.NewServerWithMiddleware(nil)
	require.NoError(t, srv.Init("localhost:0"))
	srv.RegisterFlightService(svc)
	go func() { _ = srv.Serve() }()
	defer srv.Shutdown()

	client := NewFlightClient(srv.Addr().String())
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	f := testFixture(t)
	rec, err := FixtureRecord(memory.NewGoAllocator(), f)
	require.NoError(t, err)
	defer rec.Release()

	require.NoError(t, client.Publish(context.Background(), DefaultPath, rec))

	svc.mu.Lock()
	defer svc.mu.Unlock()
	require.Len(t, svc.fixtures, 1)
	assert.Equal(t, DefaultPath, svc.paths[0])
	assert.True(t, f.Logits.Equal(svc.fixtures[0].Logits))
	assert.True(t, f.Input.Equal(svc.fixtures[0].Input))
}
