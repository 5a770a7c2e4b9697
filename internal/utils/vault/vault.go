package vault

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/dwarvesf/mint-relayer/internal/utils/config"
)

const kubernetesTokenPath = "/var/run/secrets/kubernetes.io/serviceaccount/token"

// VaultClient reads secrets from a KV v2 mount after a Kubernetes auth login.
type VaultClient struct {
	addr      string
	kvPath    string
	role      string
	tokenPath string
	token     string
	client    *resty.Client
}

func New(ctx context.Context, cfg config.VaultConfig) (*VaultClient, error) {
	return newClient(ctx, cfg.Address, cfg.KVPath, cfg.Role, kubernetesTokenPath)
}

func newClient(ctx context.Context, addr, kvPath, role, tokenPath string) (*VaultClient, error) {
	vc := &VaultClient{
		addr:      strings.TrimSuffix(addr, "/"),
		kvPath:    strings.Trim(kvPath, "/"),
		role:      role,
		tokenPath: tokenPath,
		client:    resty.New(),
	}

	token, err := vc.login(ctx)
	if err != nil {
		return nil, err
	}
	vc.token = token
	return vc, nil
}

type vaultErrorBody struct {
	Errors []string `json:"errors"`
}

type loginResponse struct {
	vaultErrorBody
	Auth *struct {
		ClientToken string `json:"client_token"`
	} `json:"auth"`
}

type kvResponse struct {
	vaultErrorBody
	Data *struct {
		Data map[string]interface{} `json:"data"`
	} `json:"data"`
}

func (vc *VaultClient) login(ctx context.Context) (string, error) {
	jwt, err := os.ReadFile(vc.tokenPath)
	if err != nil {
		return "", errors.Wrap(err, "read kubernetes service account token")
	}

	resp, err := vc.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{
			"jwt":  strings.TrimSpace(string(jwt)),
			"role": vc.role,
		}).
		Post(vc.addr + "/v1/auth/kubernetes/login")
	if err != nil {
		return "", errors.Wrap(err, "vault login")
	}

	var body loginResponse
	if err := decode(resp, &body); err != nil {
		return "", errors.Wrap(err, "vault login")
	}
	if body.Auth == nil || body.Auth.ClientToken == "" {
		return "", errors.New("vault login: response has no client_token")
	}

	return body.Auth.ClientToken, nil
}

// GetKV returns one string value from the configured KV v2 secret.
func (vc *VaultClient) GetKV(ctx context.Context, secretKey string) (string, error) {
	resp, err := vc.client.R().
		SetContext(ctx).
		SetHeader("X-Vault-Token", vc.token).
		Get(vc.addr + "/v1/" + vc.kvPath)
	if err != nil {
		return "", errors.Wrap(err, "vault kv get")
	}

	var body kvResponse
	if err := decode(resp, &body); err != nil {
		return "", errors.Wrap(err, "vault kv get")
	}
	if body.Data == nil || body.Data.Data == nil {
		return "", errors.New("vault kv get: response has no data")
	}

	secret, ok := body.Data.Data[secretKey].(string)
	if !ok {
		return "", errors.Errorf("secret key %q not found or not a string", secretKey)
	}
	return secret, nil
}

func decode(resp *resty.Response, out interface{ errs() []string }) error {
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return errors.Errorf("status %d: malformed response", resp.StatusCode())
	}
	if len(out.errs()) > 0 {
		return errors.Errorf("status %d: %s", resp.StatusCode(), strings.Join(out.errs(), "; "))
	}
	if resp.IsError() {
		return errors.Errorf("status %d", resp.StatusCode())
	}
	return nil
}

func (b vaultErrorBody) errs() []string {
	return b.Errors
}
