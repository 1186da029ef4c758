package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"storyworld/internal/events"
)

// Publisher is a testify mock of events.Publisher.
type Publisher struct {
	mock.Mock
}

func (m *Publisher) Publish(ctx context.Context, e events.Event) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *Publisher) Close() error {
	args := m.Called()
	return args.Error(0)
}
