package deploy

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/ein-plus/lain/internal/cluster"
	"github.com/ein-plus/lain/internal/values"
)

// toastLimit caps how many deployments and cron jobs the toast spells out.
const toastLimit = 2

var toastTemplate = template.Must(template.New("toast").Parse(`Your pods have all been created, you can see them using:
    kubectl get po -l app.kubernetes.io/name={{ .Appname }}
to tail logs:
{{- range $i, $d := .Deployments }}{{ if lt $i $.Limit }}
    kubectl logs -f --tail 10 -l app.kubernetes.io/instance={{ $.Appname }}-{{ $d }}
{{- end }}{{ end }}
{{- if gt (len .Deployments) .Limit }}
    ...
{{- end }}

Remember, if this upgrade only contains config changes, Kubernetes will not restart your containers, you'll have to do this yourself:
    kubectl delete po -l app.kubernetes.io/name={{ .Appname }}

To rollback to a previous version:
    helm history {{ .Appname }}
    helm rollback {{ .Appname }} [REVISION]
{{- if .URLs }}

To access your app through internal domain:
{{- range .URLs }}
    {{ . }}
{{- end }}
{{- end }}
{{- if .CronJobs }}

To test your cronjob:
{{- range $i, $j := .CronJobs }}{{ if lt $i $.Limit }}
    kubectl create job --from=cronjob/{{ $.Appname }}-{{ $j }} {{ $.Appname }}-{{ $j }}-test
{{- end }}{{ end }}
{{- if gt (len .CronJobs) .Limit }}
    ...
{{- end }}
{{- end }}
{{- if .GrafanaURL }}

use grafana for monitoring:
    {{ .GrafanaURL }}
{{- end }}
{{- if .Kibana }}

kibana, for log output and analysing:
    http://{{ .Kibana }}/app/logtrail#/?q=kubernetes.pod_name.keyword:{{ .Appname }}*&h=All&t=Now&i=logstash-*
{{- end }}
`))

type toastData struct {
	Appname     string
	Deployments []string
	CronJobs    []string
	URLs        []string
	GrafanaURL  string
	Kibana      string
	Limit       int
}

// URLs lists the addresses an app is reachable at: internal ingresses under
// the cluster's ingress domain, external ingresses as they are.
func URLs(tree map[string]interface{}, ep cluster.Endpoints) []string {
	internal, external := values.IngressHosts(tree)
	urls := make([]string, 0, len(internal)+len(external))
	for _, h := range internal {
		urls = append(urls, ep.IngressURL(h))
	}
	for _, h := range external {
		urls = append(urls, fmt.Sprintf("http://%s", h))
	}
	return urls
}

// Toast renders the follow-up commands printed after a successful deploy.
func Toast(appname string, tree map[string]interface{}, ep cluster.Endpoints) (string, error) {
	var buf bytes.Buffer
	err := toastTemplate.Execute(&buf, toastData{
		Appname:     appname,
		Deployments: values.DeploymentNames(tree),
		CronJobs:    values.CronJobNames(tree),
		URLs:        URLs(tree, ep),
		GrafanaURL:  ep.GrafanaURL,
		Kibana:      ep.Kibana,
		Limit:       toastLimit,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render deploy toast: %w", err)
	}
	return buf.String(), nil
}
