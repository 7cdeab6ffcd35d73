package search

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/opensearchserverless"
)

// CollectionGetter is the subset of the OpenSearch Serverless client used to
// resolve a collection ARN.
type CollectionGetter interface {
	BatchGetCollection(ctx context.Context, in *opensearchserverless.BatchGetCollectionInput, optFns ...func(*opensearchserverless.Options)) (*opensearchserverless.BatchGetCollectionOutput, error)
}

// Endpoint is a resolved cluster location and signing scope.
type Endpoint struct {
	Host       string
	Service    string
	Region     string
	Serverless bool
}

// EndpointOptions are the raw configured values.
type EndpointOptions struct {
	Host       string
	Region     string
	Service    string
	Serverless *bool
	// Collections builds a serverless client for a region; used only when
	// Host is a collection ARN.
	Collections func(region string) CollectionGetter
}

// IsARN reports whether v looks like an AWS ARN.
func IsARN(v string) bool {
	return strings.HasPrefix(v, "arn:")
}

// ResolveEndpoint turns the configured host into a hostname, signing service
// and region. A collection ARN is looked up through OpenSearch Serverless;
// a URL is reduced to its host.
func ResolveEndpoint(ctx context.Context, opts EndpointOptions) (Endpoint, error) {
	var ep Endpoint
	if IsARN(opts.Host) {
		host, region, err := resolveCollection(ctx, opts)
		if err != nil {
			return Endpoint{}, err
		}
		ep = Endpoint{Host: host, Service: "aoss", Region: region}
	} else {
		host := opts.Host
		if u, err := url.Parse(opts.Host); err == nil && u.Host != "" {
			host = u.Host
		}
		service := opts.Service
		if service == "" {
			service = "es"
			if strings.Contains(strings.ToLower(host), ".aoss.") {
				service = "aoss"
			}
		}
		ep = Endpoint{Host: host, Service: service, Region: opts.Region}
	}

	if opts.Serverless != nil {
		ep.Serverless = *opts.Serverless
	} else {
		ep.Serverless = ep.Service == "aoss" || strings.Contains(strings.ToLower(ep.Host), ".aoss.") || IsARN(opts.Host)
	}
	if ep.Serverless {
		ep.Service = "aoss"
	}
	return ep, nil
}

func resolveCollection(ctx context.Context, opts EndpointOptions) (string, string, error) {
	parts := strings.Split(opts.Host, ":")
	if len(parts) < 6 {
		return "", "", fmt.Errorf("invalid ARN: %s", opts.Host)
	}
	resource := strings.Split(parts[5], "/")
	if len(resource) != 2 || resource[0] != "collection" {
		return "", "", fmt.Errorf("ARN does not appear to be a collection ARN: %s", opts.Host)
	}
	region := opts.Region
	if region == "" {
		region = parts[3]
	}
	if region == "" {
		return "", "", errors.New("region could not be determined from ARN or configuration")
	}
	if opts.Collections == nil {
		return "", "", errors.New("no serverless client available to resolve collection ARN")
	}

	out, err := opts.Collections(region).BatchGetCollection(ctx, &opensearchserverless.BatchGetCollectionInput{
		Ids: []string{resource[1]},
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to look up collection %s: %w", resource[1], err)
	}
	if len(out.CollectionDetails) == 0 {
		return "", "", fmt.Errorf("no collection details returned for id %s", resource[1])
	}
	endpoint := out.CollectionDetails[0].CollectionEndpoint
	if endpoint == nil || *endpoint == "" {
		return "", "", fmt.Errorf("collection %s has no endpoint", resource[1])
	}
	host := *endpoint
	if u, err := url.Parse(host); err == nil && u.Host != "" {
		host = u.Host
	} else {
		host = strings.TrimRight(strings.TrimPrefix(strings.TrimPrefix(host, "https://"), "http://"), "/")
	}
	return host, region, nil
}
