/*
Package lain provides a CLI tool for deploying lain apps to Kubernetes.

Usage:

	lain [command]

Available Commands:

	init          Render a helm chart for this app
	use           Point kubectl, helm and lain to a cluster
	deploy        Deploy your app to the active cluster
	update-image  Update, and only update, the image of some deployments
	secret        Manage secret files of your app
	env           Manage environment variables of your app
	status        View app status
	logs          Tail app logs
	x             Exec into a pod of your app

Examples:

	# render ./chart from lain.yaml
	lain init

	# deploy to cluster bei
	lain use bei
	lain deploy

	# deploy a specific image
	lain deploy --set imageTag=release-1588000000-abcdef0

Building, tagging and pushing images is still done by legacy_lain; the
prepare, build, tag, push, test, run and stop commands pass their arguments
through to it.
*/
package lain
