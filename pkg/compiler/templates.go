package compiler

import (
	"fmt"
	"strings"

	"github.com/dshills/flowforge/pkg/workflow"
)

// deploymentFiles renders the static infrastructure and deploy
// templates parameterized by workflow metadata.
func deploymentFiles(wf *workflow.Workflow) map[string]string {
	return map[string]string{
		"cloudbuild.yaml":   cloudBuildConfig(wf),
		"terraform/main.tf": terraformConfig(wf),
		"deploy.sh":         deployScript(wf),
	}
}

func cloudBuildConfig(wf *workflow.Workflow) string {
	region := wf.Region()
	return fmt.Sprintf(`steps:
  # Deploy Cloud Functions
  - name: 'gcr.io/google.com/cloudsdktool/cloud-sdk'
    entrypoint: 'bash'
    args:
      - '-c'
      - |
        for func_dir in functions/*/; do
          func_name=$(basename "$func_dir")
          gcloud functions deploy "$func_name" \
            --source="$func_dir" \
            --runtime=python311 \
            --trigger=http \
            --allow-unauthenticated \
            --region=%s
        done

  # Build and deploy Cloud Run services
  - name: 'gcr.io/google.com/cloudsdktool/cloud-sdk'
    entrypoint: 'bash'
    args:
      - '-c'
      - |
        for service_dir in services/*/; do
          service_name=$(basename "$service_dir")
          gcloud run deploy "$service_name" \
            --source="$service_dir" \
            --region=%s \
            --allow-unauthenticated
        done

  # Deploy workflow
  - name: 'gcr.io/google.com/cloudsdktool/cloud-sdk'
    entrypoint: 'gcloud'
    args:
      - 'workflows'
      - 'deploy'
      - '%s'
      - '--source=workflow.yaml'
      - '--location=%s'

options:
  logging: CLOUD_LOGGING_ONLY
`, region, region, wf.Metadata.Name, region)
}

func terraformConfig(wf *workflow.Workflow) string {
	description := wf.Metadata.Description
	if description == "" {
		description = "Generated workflow"
	}
	resourceName := strings.ReplaceAll(strings.ToLower(wf.Metadata.Name), "-", "_")

	return fmt.Sprintf(`terraform {
  required_providers {
    google = {
      source  = "hashicorp/google"
      version = "~> 4.0"
    }
  }
}

provider "google" {
  project = var.project_id
  region  = "%s"
}

variable "project_id" {
  description = "Google Cloud Project ID"
  type        = string
}

resource "google_workflows_workflow" "%s" {
  name            = "%s"
  region          = "%s"
  description     = "%s"
  source_contents = file("../workflow.yaml")
}
`, wf.Region(), resourceName, wf.Metadata.Name, wf.Region(), description)
}

func deployScript(wf *workflow.Workflow) string {
	projectID := wf.Metadata.ProjectID
	if projectID == "" {
		projectID = "your-project-id"
	}

	return fmt.Sprintf(`#!/bin/bash

# Deployment script for %s
set -e

PROJECT_ID="${1:-%s}"
REGION="%s"

echo "Deploying workflow: %s"
echo "Project ID: $PROJECT_ID"
echo "Region: $REGION"

gcloud config set project "$PROJECT_ID"

echo "Deploying Cloud Functions..."
for func_dir in functions/*/; do
  if [ -d "$func_dir" ]; then
    func_name=$(basename "$func_dir")
    echo "Deploying function: $func_name"
    gcloud functions deploy "$func_name" \
      --source="$func_dir" \
      --runtime=python311 \
      --trigger=http \
      --allow-unauthenticated \
      --region="$REGION"
  fi
done

echo "Deploying Cloud Run services..."
for service_dir in services/*/; do
  if [ -d "$service_dir" ]; then
    service_name=$(basename "$service_dir")
    echo "Deploying service: $service_name"
    gcloud run deploy "$service_name" \
      --source="$service_dir" \
      --region="$REGION" \
      --allow-unauthenticated
  fi
done

echo "Deploying workflow..."
gcloud workflows deploy "%s" \
  --source=workflow.yaml \
  --location="$REGION"

echo "Deployment completed successfully!"
`, wf.Metadata.Name, projectID, wf.Region(), wf.Metadata.Name, wf.Metadata.Name)
}
