package exttool

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultRequestTimeout is passed to every non-interactive kubectl call.
const DefaultRequestTimeout = 2 * time.Second

// Kubectl is the cluster-control capability. All calls target the default
// namespace of the active kubeconfig.
type Kubectl struct {
	Runner         Runner
	RequestTimeout time.Duration
}

func (k *Kubectl) run(ctx context.Context, opts RunOptions, args ...string) (*Result, error) {
	timeout := k.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	full := []string{fmt.Sprintf("--request-timeout=%s", timeout)}
	if opts.Interactive {
		// streaming commands such as logs -f must not time out
		full = []string{"--request-timeout=0"}
	}
	full = append(full, args...)
	return k.Runner.Run(ctx, "kubectl", full, opts)
}

// GetSecret returns `kubectl get secret NAME -o json`. A missing secret is a
// non-zero Result, not an error.
func (k *Kubectl) GetSecret(ctx context.Context, name string) (*Result, error) {
	return k.run(ctx, RunOptions{}, "get", "secret", name, "-o", "json")
}

// CreateSecretFromLiteral creates a generic secret holding one literal pair.
func (k *Kubectl) CreateSecretFromLiteral(ctx context.Context, name, key, value string) (*Result, error) {
	return k.run(ctx, RunOptions{}, "create", "secret", "generic", name, fmt.Sprintf("--from-literal=%s=%s", key, value))
}

// CreateSecretFromFile creates a generic secret holding one file.
func (k *Kubectl) CreateSecretFromFile(ctx context.Context, name, path string) (*Result, error) {
	return k.run(ctx, RunOptions{}, "create", "secret", "generic", name, "--from-file="+path)
}

// Apply pipes a manifest into `kubectl apply -f -`.
func (k *Kubectl) Apply(ctx context.Context, manifest []byte) (*Result, error) {
	return k.run(ctx, RunOptions{Stream: true, Stdin: bytes.NewReader(manifest)}, "apply", "-f", "-")
}

// SetContextNamespace sets the namespace of the current kubeconfig context.
func (k *Kubectl) SetContextNamespace(ctx context.Context, namespace string) (*Result, error) {
	return k.run(ctx, RunOptions{}, "config", "set-context", "--current", "--namespace="+namespace)
}

// SetImage replaces the image of container in a deployment.
func (k *Kubectl) SetImage(ctx context.Context, deployment, container, image string) (*Result, error) {
	return k.run(ctx, RunOptions{Stream: true}, "set", "image", "deployment/"+deployment, fmt.Sprintf("%s=%s", container, image), "--all")
}

// PodPhase is a pod name with its status phase.
type PodPhase struct {
	Name  string
	Phase string
}

// Pods lists pods matching selector with their phases.
func (k *Kubectl) Pods(ctx context.Context, selector string) ([]PodPhase, error) {
	res, err := k.run(ctx, RunOptions{}, "get", "pod", "-l", selector,
		`-o=jsonpath={range .items[*]}{.metadata.name}{" "}{.status.phase}{"\n"}{end}`)
	if err != nil {
		return nil, err
	}
	if err := res.Err(); err != nil {
		return nil, err
	}

	var pods []PodPhase
	for _, line := range strings.Split(string(res.Stdout), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		p := PodPhase{Name: fields[0]}
		if len(fields) > 1 {
			p.Phase = fields[1]
		}
		pods = append(pods, p)
	}
	return pods, nil
}

// GetPods prints `kubectl get po -l SELECTOR` to the terminal.
func (k *Kubectl) GetPods(ctx context.Context, selector string) (*Result, error) {
	return k.run(ctx, RunOptions{Stream: true}, "get", "po", "-l", selector)
}

// Events prints the events of one object.
func (k *Kubectl) Events(ctx context.Context, object string) (*Result, error) {
	return k.run(ctx, RunOptions{Stream: true}, "get", "events", "--field-selector", "involvedObject.name="+object)
}

// Logs follows logs of pods matching selector. tail < 0 shows everything.
func (k *Kubectl) Logs(ctx context.Context, selector string, tail int) (*Result, error) {
	return k.run(ctx, RunOptions{Interactive: true}, "logs", "-f", fmt.Sprintf("--tail=%d", tail), "-l", selector)
}

// Exec runs command interactively inside pod.
func (k *Kubectl) Exec(ctx context.Context, pod string, command []string) (*Result, error) {
	args := append([]string{"exec", "-it", pod, "--"}, command...)
	return k.run(ctx, RunOptions{Interactive: true}, args...)
}
