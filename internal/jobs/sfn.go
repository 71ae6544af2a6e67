package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	sfntypes "github.com/aws/aws-sdk-go-v2/service/sfn/types"

	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

// SFNAPI is the subset of the AWS Step Functions client used by the jobs package.
type SFNAPI interface {
	StartExecution(ctx context.Context, params *sfn.StartExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error)
	DescribeExecution(ctx context.Context, params *sfn.DescribeExecutionInput, optFns ...func(*sfn.Options)) (*sfn.DescribeExecutionOutput, error)
}

// maxExecutionName is the Step Functions limit on execution name length.
const maxExecutionName = 80

// ExecutionName maps s onto the characters Step Functions accepts in an
// execution name (letters, digits, '-' and '_'), truncated to 80 bytes.
func ExecutionName(s string) string {
	name := strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			return c
		default:
			return '_'
		}
	}, s)
	if len(name) > maxExecutionName {
		name = name[:maxExecutionName]
	}
	return name
}

// StartExecution starts a state machine execution. name may be empty, in
// which case Step Functions generates one. input is marshaled to JSON when
// non-nil.
func StartExecution(ctx context.Context, client SFNAPI, stateMachineARN, name string, input any) (string, error) {
	if stateMachineARN == "" {
		return "", fmt.Errorf("step-function: stateMachineArn is required")
	}

	params := &sfn.StartExecutionInput{StateMachineArn: aws.String(stateMachineARN)}
	if name != "" {
		params.Name = aws.String(name)
	}
	if input != nil {
		b, err := json.Marshal(input)
		if err != nil {
			return "", fmt.Errorf("step-function: marshaling input: %w", err)
		}
		params.Input = aws.String(string(b))
	}

	out, err := client.StartExecution(ctx, params)
	if err != nil {
		return "", fmt.Errorf("step-function: StartExecution failed: %w", err)
	}
	return aws.ToString(out.ExecutionArn), nil
}

// CheckExecution checks the status of a Step Functions execution.
func CheckExecution(ctx context.Context, client SFNAPI, executionARN string) (StatusResult, error) {
	out, err := client.DescribeExecution(ctx, &sfn.DescribeExecutionInput{
		ExecutionArn: aws.String(executionARN),
	})
	if err != nil {
		return StatusResult{}, fmt.Errorf("sfn status: DescribeExecution failed: %w", err)
	}

	state := out.Status
	switch state {
	case sfntypes.ExecutionStatusSucceeded:
		return StatusResult{State: RunCheckSucceeded, Message: string(state)}, nil
	case sfntypes.ExecutionStatusTimedOut:
		return StatusResult{State: RunCheckFailed, Message: string(state), FailureCategory: types.FailureTimeout}, nil
	case sfntypes.ExecutionStatusFailed, sfntypes.ExecutionStatusAborted:
		return StatusResult{State: RunCheckFailed, Message: string(state), FailureCategory: types.FailureTransient}, nil
	default:
		return StatusResult{State: RunCheckRunning, Message: string(state)}, nil
	}
}
