package tools

import (
	"context"
	"encoding/json"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/shellmind/cli/internal/fsshim"
)

// UseAWS invokes cloud SDK calls per a declared service/operation pair.
// Argument validation, credential resolution, and the confirmation
// preview are real; the generic per-service call surface is resolved by
// the hosting build, so an unwired build reports that instead of failing
// opaquely.
type UseAWS struct{}

type useAWSInput struct {
	ServiceName   string            `json:"service_name"`
	OperationName string            `json:"operation_name"`
	Parameters    map[string]string `json:"parameters,omitempty"`
	Region        string            `json:"region"`
	ProfileName   string            `json:"profile_name,omitempty"`
	Label         string            `json:"label,omitempty"`
}

func (*UseAWS) Name() string { return "use_aws" }

func (*UseAWS) Description() string {
	return "Make an AWS CLI-style API call: service name, operation name, and flat string parameters, against a region and optional named profile."
}

func (*UseAWS) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "service_name": {"type": "string", "pattern": "^[a-z0-9-]+$", "description": "AWS service, e.g. s3, ec2, lambda."},
    "operation_name": {"type": "string", "pattern": "^[a-z0-9-]+$", "description": "Operation in kebab-case, e.g. list-buckets."},
    "parameters": {"type": "object", "additionalProperties": {"type": "string"}},
    "region": {"type": "string", "minLength": 1, "description": "Region to call, e.g. us-east-1."},
    "profile_name": {"type": "string", "description": "Named credentials profile."},
    "label": {"type": "string", "description": "Human-readable label for this call."}
  },
  "required": ["service_name", "operation_name", "region"]
}`)
}

func (t *UseAWS) Validate(input json.RawMessage) error {
	return ValidateInput(t, input)
}

func (*UseAWS) QueueDescription(input json.RawMessage, _ fsshim.FS) string {
	var in useAWSInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "use_aws (unparseable arguments)"
	}
	desc := fmt.Sprintf("AWS call: %s %s in %s", in.ServiceName, in.OperationName, in.Region)
	if in.ProfileName != "" {
		desc += " (profile " + in.ProfileName + ")"
	}
	if in.Label != "" {
		desc += "\n" + in.Label
	}
	return desc
}

func (*UseAWS) Invoke(ctx context.Context, input json.RawMessage, _ fsshim.FS) (*Output, error) {
	var in useAWSInput
	if err := json.Unmarshal(input, &in); err != nil {
		return Errorf("use_aws: %v", err), nil
	}

	optFns := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(in.Region),
	}
	if in.ProfileName != "" {
		optFns = append(optFns, awsconfig.WithSharedConfigProfile(in.ProfileName))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return Errorf("use_aws: load credentials: %v", err), nil
	}
	if _, err := cfg.Credentials.Retrieve(ctx); err != nil {
		return Errorf("use_aws: no usable credentials for this call: %v", err), nil
	}

	return Errorf("use_aws: the %s service surface is not wired in this build; credentials for %s resolved successfully but the call was not made", in.ServiceName, in.Region), nil
}
