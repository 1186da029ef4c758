//go:build integration

package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"storyworld/internal/events"
)

const testExchange = "storyworld.events.test"

type RabbitMQSuite struct {
	suite.Suite
	container *rabbitmq.RabbitMQContainer
	url       string
}

func (s *RabbitMQSuite) SetupSuite() {
	ctx := context.Background()
	container, err := rabbitmq.Run(ctx,
		"rabbitmq:3-management-alpine",
		testcontainers.WithWaitStrategy(wait.ForLog("Server startup complete")),
	)
	s.Require().NoError(err)
	s.container = container

	s.url, err = container.AmqpURL(ctx)
	s.Require().NoError(err)
}

func (s *RabbitMQSuite) TearDownSuite() {
	if s.container != nil {
		s.NoError(s.container.Terminate(context.Background()))
	}
}

// consume binds a fresh exclusive queue to the test exchange.
func (s *RabbitMQSuite) consume(bindingKey string) <-chan amqp.Delivery {
	conn, err := amqp.Dial(s.url)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = conn.Close() })

	ch, err := conn.Channel()
	s.Require().NoError(err)
	s.Require().NoError(ch.ExchangeDeclare(testExchange, amqp.ExchangeTopic, true, false, false, false, nil))
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	s.Require().NoError(err)
	s.Require().NoError(ch.QueueBind(q.Name, bindingKey, testExchange, false, nil))

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	s.Require().NoError(err)
	return deliveries
}

func (s *RabbitMQSuite) TestPublishRoutesByType() {
	choices := s.consume("story.choice_selected")
	all := s.consume("story.#")

	pub, err := events.Dial(s.url, testExchange, zaptest.NewLogger(s.T()))
	s.Require().NoError(err)
	defer func() { s.NoError(pub.Close()) }()

	ctx := context.Background()
	started := events.New(events.TypeStoryStarted, "1")
	chosen := events.New(events.TypeChoiceSelected, "1")
	chosen.Node = "hall"
	chosen.Choice = "Open the door"
	s.Require().NoError(pub.Publish(ctx, started))
	s.Require().NoError(pub.Publish(ctx, chosen))

	got := s.receive(choices)
	s.Equal("story.choice_selected", got.RoutingKey)
	s.Equal("application/json", got.ContentType)
	s.Equal(chosen.ID, got.MessageId)

	var e events.Event
	s.Require().NoError(json.Unmarshal(got.Body, &e))
	s.Equal(events.TypeChoiceSelected, e.Type)
	s.Equal("hall", e.Node)
	s.Equal("Open the door", e.Choice)

	s.Equal(started.ID, s.receive(all).MessageId)
	s.Equal(chosen.ID, s.receive(all).MessageId)
}

func (s *RabbitMQSuite) TestPublishAfterClose() {
	pub, err := events.Dial(s.url, testExchange, zaptest.NewLogger(s.T()))
	s.Require().NoError(err)
	s.Require().NoError(pub.Close())

	err = pub.Publish(context.Background(), events.New(events.TypeStoryEnded, "1"))
	s.ErrorIs(err, amqp.ErrClosed)
}

func (s *RabbitMQSuite) receive(deliveries <-chan amqp.Delivery) amqp.Delivery {
	select {
	case d := <-deliveries:
		return d
	case <-time.After(10 * time.Second):
		s.FailNow("no message delivered")
		return amqp.Delivery{}
	}
}

func TestRabbitMQSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RabbitMQSuite))
}
