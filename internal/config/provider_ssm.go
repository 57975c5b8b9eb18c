package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmClient is the subset of the SSM SDK client the provider uses, narrowed
// for mocking.
type ssmClient interface {
	GetParameters(ctx context.Context, params *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
}

// SSMProvider resolves secrets from AWS Systems Manager Parameter Store.
// It is the provider for deployed environments, where the database URL and
// provider API keys live as SecureString parameters under the environment's
// prefix (e.g. /prod/swellwatch/database/url).
type SSMProvider struct {
	// region must match where the parameters are stored; the runner never
	// reads secrets cross-region.
	region string

	// client is created lazily from the default AWS config unless injected.
	client ssmClient
}

// NewSSMProvider creates a new SSMProvider configured for the specified
// AWS region.
func NewSSMProvider(region string) *SSMProvider {
	return &SSMProvider{
		region: region,
	}
}

func newSSMProviderWithClient(region string, client ssmClient) *SSMProvider {
	return &SSMProvider{
		region: region,
		client: client,
	}
}

func (p *SSMProvider) ensureClient(ctx context.Context) error {
	if p.client != nil {
		return nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(p.region),
	)
	if err != nil {
		return fmt.Errorf("loading AWS config for SSM (region=%s): %w", p.region, err)
	}

	p.client = ssm.NewFromConfig(cfg)
	return nil
}

// ResolveSecrets fetches the named SSM parameters with decryption and
// returns a map of parameter path to plaintext value. The runner's secret
// set is small and fixed, well under the 10-name GetParameters limit, so a
// single call covers it. A parameter that SSM reports as invalid (not
// found) fails the whole call; a partially resolved configuration is worse
// than a crash at cold start.
func (p *SSMProvider) ResolveSecrets(ctx context.Context, paths []string) (map[string]string, error) {
	if len(paths) == 0 {
		return make(map[string]string), nil
	}

	if err := p.ensureClient(ctx); err != nil {
		return nil, err
	}

	output, err := p.client.GetParameters(ctx, &ssm.GetParametersInput{
		Names:          paths,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("SSM GetParameters failed for %d parameters: %w", len(paths), err)
	}

	if len(output.InvalidParameters) > 0 {
		return nil, fmt.Errorf("SSM parameters not found: %v", output.InvalidParameters)
	}

	result := make(map[string]string, len(paths))
	for _, param := range output.Parameters {
		if param.Name != nil && param.Value != nil {
			result[*param.Name] = *param.Value
		}
	}

	return result, nil
}
