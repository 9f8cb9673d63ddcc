package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/eventbridge"

	"protagonist-billing/internal/domain/ports/adapter"
)

var _ adapter.OneShotScheduler = (*EventBridgeScheduler)(nil)

// EventBridgeScheduler implements adapter.OneShotScheduler on EventBridge
// rules. A one-shot is a cron rule pinned to a single minute; EventBridge
// delivery is at-least-once, so the consumer side must tolerate replays.
type EventBridgeScheduler struct {
	cli       *eventbridge.EventBridge
	targetArn string
	roleArn   string
}

func NewEventBridgeScheduler(region, targetArn, roleArn string) *EventBridgeScheduler {
	sess := session.Must(session.NewSession(&aws.Config{
		Region: aws.String(region),
	}))
	return &EventBridgeScheduler{
		cli:       eventbridge.New(sess),
		targetArn: targetArn,
		roleArn:   roleArn,
	}
}

// ScheduleOneShot creates (or replaces) a rule that fires once at whenUTC,
// truncated to the minute. EventBridge cron has no seconds field.
func (s *EventBridgeScheduler) ScheduleOneShot(ctx context.Context, name string, whenUTC time.Time, payload adapter.TriggerPayload) error {
	input, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal trigger payload: %w", err)
	}

	t := whenUTC.UTC().Truncate(time.Minute)
	cron := fmt.Sprintf("cron(%d %d %d %d ? %d)", t.Minute(), t.Hour(), t.Day(), int(t.Month()), t.Year())

	_, err = s.cli.PutRuleWithContext(ctx, &eventbridge.PutRuleInput{
		Name:               aws.String(name),
		ScheduleExpression: aws.String(cron),
		State:              aws.String(eventbridge.RuleStateEnabled),
		Description:        aws.String("one-shot pre-billing trigger"),
	})
	if err != nil {
		return fmt.Errorf("put rule %s: %w", name, err)
	}

	target := &eventbridge.Target{
		Id:    aws.String("1"),
		Arn:   aws.String(s.targetArn),
		Input: aws.String(string(input)),
	}
	if s.roleArn != "" {
		target.RoleArn = aws.String(s.roleArn)
	}
	_, err = s.cli.PutTargetsWithContext(ctx, &eventbridge.PutTargetsInput{
		Rule:    aws.String(name),
		Targets: []*eventbridge.Target{target},
	})
	if err != nil {
		return fmt.Errorf("put targets for %s: %w", name, err)
	}
	return nil
}

// DeleteOneShot removes the rule and its targets. A rule that is already
// gone is treated as success.
func (s *EventBridgeScheduler) DeleteOneShot(ctx context.Context, name string) error {
	list, err := s.cli.ListTargetsByRuleWithContext(ctx, &eventbridge.ListTargetsByRuleInput{
		Rule: aws.String(name),
	})
	if err != nil {
		if isRuleNotFound(err) {
			return nil
		}
		return fmt.Errorf("list targets for %s: %w", name, err)
	}

	if len(list.Targets) > 0 {
		ids := make([]*string, 0, len(list.Targets))
		for _, t := range list.Targets {
			ids = append(ids, t.Id)
		}
		if _, err := s.cli.RemoveTargetsWithContext(ctx, &eventbridge.RemoveTargetsInput{
			Rule: aws.String(name),
			Ids:  ids,
		}); err != nil && !isRuleNotFound(err) {
			return fmt.Errorf("remove targets for %s: %w", name, err)
		}
	}

	if _, err := s.cli.DeleteRuleWithContext(ctx, &eventbridge.DeleteRuleInput{
		Name: aws.String(name),
	}); err != nil && !isRuleNotFound(err) {
		return fmt.Errorf("delete rule %s: %w", name, err)
	}
	return nil
}

func isRuleNotFound(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		return aerr.Code() == eventbridge.ErrCodeResourceNotFoundException
	}
	return false
}
