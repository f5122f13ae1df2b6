package middleware

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// unknownService is the default service name when detection fails
const unknownService = "unknown-service"

// ServiceInfo identifies this process in traces and profiles.
type ServiceInfo struct {
	Name        string
	Namespace   string
	Version     string
	Environment string
}

// DetectServiceInfo resolves the service identity. OTEL_SERVICE_NAME wins
// over the configured name; the namespace comes from OTEL_RESOURCE_ATTRIBUTES,
// the mounted Kubernetes service account, POD_NAMESPACE, then "default".
func DetectServiceInfo(configuredName, version, environment string) ServiceInfo {
	info := ServiceInfo{
		Name:        os.Getenv("OTEL_SERVICE_NAME"),
		Version:     version,
		Environment: environment,
	}
	if info.Name == "" {
		info.Name = configuredName
	}
	if info.Name == "" {
		info.Name = unknownService
	}
	info.Namespace = detectNamespace()
	return info
}

func detectNamespace() string {
	if attrs := os.Getenv("OTEL_RESOURCE_ATTRIBUTES"); attrs != "" {
		for _, attr := range strings.Split(attrs, ",") {
			if k, v, ok := strings.Cut(attr, "="); ok && k == "service.namespace" {
				return v
			}
		}
	}
	if data, err := os.ReadFile("/var/run/secrets/kubernetes.io/serviceaccount/namespace"); err == nil {
		return strings.TrimSpace(string(data))
	}
	if ns := os.Getenv("POD_NAMESPACE"); ns != "" {
		return ns
	}
	return "default"
}

// CreateResource creates an OpenTelemetry resource for info plus host,
// process and container attributes. On partial detection failure it returns
// a minimal resource together with the error.
func CreateResource(ctx context.Context, info ServiceInfo) (*resource.Resource, error) {
	attrs := []resource.Option{
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithOS(),
		resource.WithContainer(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(info.Name),
			semconv.ServiceNamespaceKey.String(info.Namespace),
			semconv.ServiceVersionKey.String(info.Version),
			semconv.DeploymentEnvironmentKey.String(info.Environment),
		),
	}

	res, err := resource.New(ctx, attrs...)
	if err != nil {
		return resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(info.Name),
			semconv.ServiceNamespaceKey.String(info.Namespace),
		), fmt.Errorf("resource detection partial failure (using fallback): %w", err)
	}

	return res, nil
}
