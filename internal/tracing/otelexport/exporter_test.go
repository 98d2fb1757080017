package otelexport

import (
	"context"
	"testing"
)

func TestNew_EmptyEndpoint(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil {
		t.Error("expected error for empty endpoint")
	}
}

func TestExporter_Shutdown_NilExporter(t *testing.T) {
	var exp *Exporter
	if err := exp.Shutdown(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestConfig_DefaultServiceName(t *testing.T) {
	if got := (Config{}).serviceName(); got != "gomemory" {
		t.Errorf("serviceName = %q, want gomemory", got)
	}
	if got := (Config{ServiceName: "mem"}).serviceName(); got != "mem" {
		t.Errorf("serviceName = %q, want mem", got)
	}
}
