package blob

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/agenthands/ticketkg/internal/ticket"
)

// ObjectGetter is the subset of the S3 client used here.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type S3Fetcher struct {
	Client ObjectGetter
}

func NewS3Fetcher(cfg aws.Config) *S3Fetcher {
	return &S3Fetcher{Client: s3.NewFromConfig(cfg)}
}

func (f *S3Fetcher) FetchTickets(ctx context.Context, bucket, key string) ([]ticket.Ticket, error) {
	out, err := f.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("s3://%s/%s: %w", bucket, key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()
	return DecodeTickets(out.Body)
}
