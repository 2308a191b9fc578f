package cli

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ein-plus/lain/internal/deploy"
	"github.com/ein-plus/lain/internal/exttool"
	"github.com/ein-plus/lain/internal/workflows"
	"github.com/spf13/cobra"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// StatusCmd prints a snapshot of the app: pods, events of troubled pods
// and the health of every ingress URL.
type StatusCmd struct {
	root *rootOptions

	output    string
	noHeaders bool
	timeout   time.Duration
}

func newStatusCmd(o *rootOptions) *cobra.Command {
	s := &StatusCmd{root: o}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "View app status",
		Long: `View app status: pods, events of pods that are not running, and the
response of every ingress URL.

URLs are probed in parallel, each with its own timeout.`,
		Args: cobra.NoArgs,
		RunE: s.run,
	}

	cmd.Flags().StringVarP(&s.output, "output", "o", "", "Output format. One of: (json, yaml)")
	cmd.Flags().BoolVar(&s.noHeaders, "no-headers", false, "When using the default output format, don't print headers")
	cmd.Flags().DurationVar(&s.timeout, "probe-timeout", workflows.DefaultProbeTimeout, "timeout of each URL probe")

	return cmd
}

// troubled reports pod phases worth printing events for.
func troubled(phase string) bool {
	switch corev1.PodPhase(phase) {
	case corev1.PodRunning, corev1.PodSucceeded:
		return false
	default:
		return true
	}
}

func podTable(pods []exttool.PodPhase) *metav1.Table {
	table := newTable("NAME", "PHASE")
	for _, p := range pods {
		phase := p.Phase
		if phase == "" {
			phase = "<unknown>"
		}
		table.Rows = append(table.Rows, metav1.TableRow{Cells: []interface{}{p.Name, phase}})
	}
	return table
}

func probeTable(results []workflows.ProbeResult) *metav1.Table {
	table := newTable("URL", "STATUS", "LATENCY")
	for _, r := range results {
		status := fmt.Sprintf("%d", r.StatusCode)
		latency := r.Latency.Round(time.Millisecond).String()
		if r.Err != nil {
			status, latency = fmt.Sprintf("error: %v", r.Err), "<none>"
		}
		table.Rows = append(table.Rows, metav1.TableRow{Cells: []interface{}{r.URL, status, latency}})
	}
	return table
}

func (s *StatusCmd) run(cmd *cobra.Command, args []string) error {
	lctx, err := s.root.appContext(cmd)
	if err != nil {
		return err
	}

	pods, err := lctx.Kubectl.Pods(lctx, "app.kubernetes.io/name="+lctx.Appname)
	if err != nil {
		return err
	}

	prober := workflows.NewProber()
	prober.Timeout = s.timeout
	results := prober.Probe(lctx, deploy.URLs(lctx.Values, lctx.Cluster))

	if s.output != "" {
		if err := printObject(podTable(pods), lctx.Stdout, s.output); err != nil {
			return err
		}
		return printObject(probeTable(results), lctx.Stdout, s.output)
	}

	if len(pods) == 0 {
		warn(lctx.Stderr, fmt.Sprintf("no pod found for app %s, did you deploy?", lctx.Appname))
	} else if err := printTable(podTable(pods), lctx.Stdout, s.noHeaders); err != nil {
		return err
	}

	for _, p := range pods {
		if !troubled(p.Phase) {
			continue
		}
		fmt.Fprintf(lctx.Stdout, "\nevents of %s (%s):\n", p.Name, p.Phase)
		res, err := lctx.Kubectl.Events(lctx, p.Name)
		if err != nil {
			return err
		}
		if res.ExitCode != 0 {
			log.Warn("Failed to get pod events", "pod", p.Name, "code", res.ExitCode)
		}
	}

	if len(results) > 0 {
		fmt.Fprintln(lctx.Stdout)
		return printTable(probeTable(results), lctx.Stdout, s.noHeaders)
	}
	return nil
}
