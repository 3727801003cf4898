package notify

import (
	"os"
	"path/filepath"
	"testing"
)

func writeNotifiersFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write notifiers file: %v", err)
	}
	return path
}

const sampleNotifiersYAML = `notifiers:
  - id: ops-log
    type: log
  - id: webhook
    type: http
    http:
      url: https://hooks.example/notify
  - id: alerts
    type: sns
    enabled: false
    sns:
      topic_arn: arn:aws:sns:::alerts
      region: us-east-1
`

func TestLoadNotifierRegistry(t *testing.T) {
	reg, err := LoadRegistry(writeNotifiersFile(t, "notifiers.yaml", sampleNotifiersYAML))
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}

	if len(reg.All()) != 3 {
		t.Fatalf("expected 3 notifiers, got %d", len(reg.All()))
	}

	enabled := reg.Enabled()
	if len(enabled) != 2 {
		t.Fatalf("expected 2 enabled notifiers, got %d", len(enabled))
	}

	webhook, ok := reg.ByID("webhook")
	if !ok {
		t.Fatalf("webhook not found")
	}
	if webhook.HTTP.Method != httpDefaultMethod {
		t.Errorf("method default = %q", webhook.HTTP.Method)
	}
	if webhook.HTTP.TimeoutSeconds != httpDefaultTimeoutSeconds {
		t.Errorf("timeout default = %d", webhook.HTTP.TimeoutSeconds)
	}
}

func TestLoadNotifierRegistryRejectsDuplicates(t *testing.T) {
	content := `notifiers:
  - id: one
    type: log
  - id: one
    type: log
`
	if _, err := LoadRegistry(writeNotifiersFile(t, "notifiers.yaml", content)); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestLoadNotifierRegistryValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing type", "notifiers:\n  - id: a\n"},
		{"http without url", "notifiers:\n  - id: a\n    type: http\n    http: {}\n"},
		{"sns without region", "notifiers:\n  - id: a\n    type: sns\n    sns:\n      topic_arn: arn:x\n"},
		{"sqs without uri", "notifiers:\n  - id: a\n    type: sqs\n    sqs:\n      region: us-east-1\n"},
		{"pubsub without topic", "notifiers:\n  - id: a\n    type: pubsub\n    pubsub:\n      project_id: p\n"},
		{"empty file", "notifiers: []\n"},
	}
	for _, c := range cases {
		if _, err := LoadRegistry(writeNotifiersFile(t, "notifiers.yaml", c.content)); err == nil {
			t.Errorf("%s: expected an error", c.name)
		}
	}
}

func TestRegistryBuilderLookup(t *testing.T) {
	reg := NewRegistry(nil)
	if _, err := reg.NotifierFor(nil, Config{ID: "x", Type: "smoke-signal"}); err == nil {
		t.Fatalf("expected error for unregistered type")
	}

	reg.Register(TypeLog, newLogNotifier)
	n, err := reg.NotifierFor(nil, Config{ID: "x", Type: TypeLog})
	if err != nil {
		t.Fatalf("NotifierFor: %v", err)
	}
	if n.ID() != "x" || n.Type() != TypeLog {
		t.Fatalf("notifier = %s/%s", n.ID(), n.Type())
	}
}
