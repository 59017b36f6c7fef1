package ai

import "context"

type Client interface {
	Examine(ctx context.Context, findings string) (string, error)
}
