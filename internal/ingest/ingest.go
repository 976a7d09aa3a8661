// Package ingest feeds judged submissions from the message queue into the
// contest service.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/jjudge-oj/contestd/internal/mq"
	"github.com/jjudge-oj/contestd/internal/services"
	"github.com/jjudge-oj/contestd/types"
	"github.com/rs/zerolog"
)

// Message is the queue payload announcing a judged submission.
type Message struct {
	ContestID  int              `json:"contest_id"`
	JudgeState types.JudgeState `json:"judge_state"`
}

// Submitter accepts judged submissions.
type Submitter interface {
	Submit(ctx context.Context, contestID int, js types.JudgeState) error
}

// Broker is the part of the message queue the consumer needs.
type Broker interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// Consumer subscribes to the judge channel and submits each message.
type Consumer struct {
	broker    Broker
	channel   string
	submitter Submitter
	log       zerolog.Logger
}

func NewConsumer(broker Broker, channel string, submitter Submitter, log zerolog.Logger) *Consumer {
	return &Consumer{
		broker:    broker,
		channel:   channel,
		submitter: submitter,
		log:       log.With().Str("component", "ingest").Str("channel", channel).Logger(),
	}
}

// Run consumes until ctx is cancelled or the broker fails.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info().Msg("consuming judge states")
	err := c.broker.Subscribe(ctx, c.channel, c.Handle)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Handle processes one delivery. Messages that can never succeed are
// dropped with a warning; storage failures are returned so the broker
// redelivers the message.
func (c *Consumer) Handle(ctx context.Context, msg mq.Message) error {
	m, err := decode(msg)
	if err != nil {
		c.log.Warn().Err(err).Str("message_id", msg.ID).Msg("malformed judge state dropped")
		return nil
	}

	err = c.submitter.Submit(ctx, m.ContestID, m.JudgeState)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, services.ErrInvalidProblem), errors.Is(err, services.ErrContestNotFound):
		c.log.Warn().
			Err(err).
			Str("message_id", msg.ID).
			Int("contest_id", m.ContestID).
			Int64("submission_id", m.JudgeState.SubmissionID).
			Msg("judge state rejected")
		return nil
	default:
		c.log.Error().
			Err(err).
			Str("message_id", msg.ID).
			Int("attempt", msg.Attempt).
			Int("contest_id", m.ContestID).
			Int64("submission_id", m.JudgeState.SubmissionID).
			Msg("judge state not applied")
		return err
	}
}

func decode(msg mq.Message) (Message, error) {
	var m Message
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		return Message{}, err
	}
	if m.ContestID == 0 {
		if raw, ok := msg.Attributes["contest_id"]; ok {
			id, err := strconv.Atoi(raw)
			if err != nil {
				return Message{}, fmt.Errorf("contest_id attribute: %w", err)
			}
			m.ContestID = id
		}
	}
	if m.ContestID <= 0 {
		return Message{}, errors.New("contest_id is required")
	}
	return m, nil
}

// Publish sends m to channel.
func Publish(ctx context.Context, broker Broker, channel string, m Message) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return broker.Publish(ctx, channel, data, map[string]string{
		"contest_id":       strconv.Itoa(m.ContestID),
		mq.OrderingKeyAttr: orderingKey(m),
	})
}

// orderingKey keeps the judge states of one contestant in submission order.
func orderingKey(m Message) string {
	return strconv.Itoa(m.ContestID) + "/" + strconv.Itoa(m.JudgeState.UserID)
}

// ReadMessages decodes a JSON array of messages.
func ReadMessages(r io.Reader) ([]Message, error) {
	var out []Message
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode judge states: %w", err)
	}
	return out, nil
}
