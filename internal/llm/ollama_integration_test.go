package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startOllama runs an empty Ollama server. No model is pulled, so only
// status and error paths can be exercised without network access.
func startOllama(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "ollama/ollama:latest",
			ExposedPorts: []string{"11434/tcp"},
			WaitingFor:   wait.ForHTTP("/api/version").WithPort("11434/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("ollama container unavailable: %v", err)
	}
	t.Cleanup(func() { container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "11434/tcp")
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}
	return fmt.Sprintf("http://%s:%s", host, port.Port())
}

func TestIntegration_Ollama_PingAndMissingModel(t *testing.T) {
	baseURL := startOllama(t)

	cfg := testConfig(baseURL, "roadnerd-missing-model:latest")
	cfg.Backend.Timeout = 30 * time.Second
	g := newTestGateway(t, cfg)

	if err := g.Ping(t.Context()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	_, err := g.Complete(t.Context(), Call{Prompt: "hello", Count: 1})
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("Complete() error = %v, want *Failure", err)
	}
	if f.Kind != BadStatus {
		t.Errorf("Kind = %s, want %s", f.Kind, BadStatus)
	}
	if f.Identity.Model != "roadnerd-missing-model:latest" {
		t.Errorf("Identity.Model = %q", f.Identity.Model)
	}
}
