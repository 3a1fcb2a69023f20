// Package mocks provides testify mocks for the messaging interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/foreman-hq/foreman/pkg/eventbus"
	"github.com/foreman-hq/foreman/pkg/events"
)

// MockEventBus is a mock implementation of eventbus.EventBus.
type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, key string, event eventbus.Event) error {
	args := m.Called(ctx, key, event)

	return args.Error(0)
}

func (m *MockEventBus) Handle(eventType events.EventType, handler eventbus.EventHandler) error {
	args := m.Called(eventType, handler)

	return args.Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockEventBus) Close() error {
	args := m.Called()

	return args.Error(0)
}

func (m *MockEventBus) GenerateID() string {
	args := m.Called()

	return args.String(0)
}

// MockStatusEventBus is a mock implementation of eventbus.StatusEventBus.
type MockStatusEventBus struct {
	mock.Mock
}

func (m *MockStatusEventBus) PublishStatusChanged(ctx context.Context, event *events.StatusChanged) error {
	args := m.Called(ctx, event)

	return args.Error(0)
}

func (m *MockStatusEventBus) HandleStatusChanges(handler eventbus.StatusEventHandler) error {
	args := m.Called(handler)

	return args.Error(0)
}

func (m *MockStatusEventBus) SubscribeToStatusChanges(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockStatusEventBus) Close() error {
	args := m.Called()

	return args.Error(0)
}
