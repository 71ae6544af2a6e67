package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
)

// LambdaAPI is the subset of the AWS Lambda client used by the jobs package.
type LambdaAPI interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// FunctionError is returned when the invoked function itself failed.
type FunctionError struct {
	Function string
	Kind     string
	Payload  string
}

func (e *FunctionError) Error() string {
	return fmt.Sprintf("function %s failed (%s): %s", e.Function, e.Kind, e.Payload)
}

// Invoke calls a function synchronously with payload marshaled as JSON and,
// when out is non-nil, decodes the response into it.
func Invoke(ctx context.Context, client LambdaAPI, function string, payload, out any) error {
	if function == "" {
		return fmt.Errorf("lambda: function name is required")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("lambda: marshaling payload for %s: %w", function, err)
	}

	res, err := client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(function),
		InvocationType: lambdatypes.InvocationTypeRequestResponse,
		Payload:        body,
	})
	if err != nil {
		return fmt.Errorf("lambda: Invoke %s failed: %w", function, err)
	}
	if res.FunctionError != nil {
		return &FunctionError{
			Function: function,
			Kind:     aws.ToString(res.FunctionError),
			Payload:  string(res.Payload),
		}
	}

	if out == nil || len(res.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.Payload, out); err != nil {
		return fmt.Errorf("lambda: decoding %s response: %w", function, err)
	}
	return nil
}
