package blob

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/ticketkg/internal/ticket"
)

type mockS3 struct {
	body  string
	err   error
	input *s3.GetObjectInput
}

func (m *mockS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.input = in
	if m.err != nil {
		return nil, m.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(m.body))}, nil
}

func TestDecodeTickets(t *testing.T) {
	got, err := DecodeTickets(strings.NewReader(`[{"ticketId":"1"}, 5, "x", {"ticketId":"2"}]`))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[1].ID())

	got, err = DecodeTickets(strings.NewReader(`{"tickets":[{"ticketId":"9"}]}`))
	require.NoError(t, err)
	require.Len(t, got, 1)

	_, err = DecodeTickets(strings.NewReader(`"nope"`))
	assert.Error(t, err)
	_, err = DecodeTickets(strings.NewReader(`{`))
	assert.Error(t, err)
}

func TestFileFetcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "kb.json")

	_, err := FileFetcher{}.FetchTickets(context.Background(), "", path)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, WriteLocal(path, []ticket.Ticket{{"ticketId": "1", "subject": "vpn"}}))
	got, err := FileFetcher{}.FetchTickets(context.Background(), "", path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "vpn", got[0].String("subject"))
}

func TestS3Fetcher(t *testing.T) {
	m := &mockS3{body: `[{"ticketId":"1"}]`}
	got, err := (&S3Fetcher{Client: m}).FetchTickets(context.Background(), "bucket", "kb.json")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, "bucket", *m.input.Bucket)
	assert.Equal(t, "kb.json", *m.input.Key)

	m = &mockS3{err: &types.NoSuchKey{}}
	_, err = (&S3Fetcher{Client: m}).FetchTickets(context.Background(), "b", "k")
	assert.ErrorIs(t, err, ErrNotFound)

	m = &mockS3{err: errors.New("access denied")}
	_, err = (&S3Fetcher{Client: m}).FetchTickets(context.Background(), "b", "k")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
