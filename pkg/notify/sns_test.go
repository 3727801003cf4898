package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type fakeSNSClient struct {
	input *sns.PublishInput
	err   error
}

func (f *fakeSNSClient) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-123")}, nil
}

func TestSNSNotifierSendSuccess(t *testing.T) {
	client := &fakeSNSClient{}
	n := &snsNotifier{
		id:       "alerts",
		typ:      TypeSNS,
		topicARN: "arn:aws:sns:::topic",
		client:   client,
	}

	err := n.Send(context.Background(), Notification{
		Title: "Inviter scan completed",
		Body:  "processed=3",
		RunID: "run-1",
	})
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if client.input == nil {
		t.Fatalf("client was not called")
	}
	if got := aws.ToString(client.input.TopicArn); got != "arn:aws:sns:::topic" {
		t.Fatalf("TopicArn = %s", got)
	}
	if got := aws.ToString(client.input.Subject); got != "Inviter scan completed" {
		t.Fatalf("Subject = %s", got)
	}
	attr, ok := client.input.MessageAttributes["run_id"]
	if !ok || attr.StringValue == nil || aws.ToString(attr.StringValue) != "run-1" {
		t.Fatalf("run_id attribute missing or wrong: %#v", attr)
	}
	if attr.DataType == nil || aws.ToString(attr.DataType) != "String" {
		t.Fatalf("DataType should be String, got %#v", attr.DataType)
	}
	if client.input.Message == nil || !strings.Contains(aws.ToString(client.input.Message), `"run_id":"run-1"`) {
		t.Fatalf("Message missing run_id: %s", aws.ToString(client.input.Message))
	}
}

func TestSNSNotifierSendError(t *testing.T) {
	client := &fakeSNSClient{err: errors.New("boom")}
	n := &snsNotifier{
		id:       "alerts",
		typ:      TypeSNS,
		topicARN: "arn:aws:sns:::topic",
		client:   client,
	}

	if err := n.Send(context.Background(), Notification{RunID: "run-1"}); err == nil {
		t.Fatalf("expected error from Send")
	}
}
