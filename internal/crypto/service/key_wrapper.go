package service

import (
	"context"
	"fmt"

	"gocloud.dev/secrets"

	// Register all KMS provider drivers
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// OpenKeyWrapper opens a secrets.Keeper for uri. Supported schemes are base64key://,
// gcpkms://, awskms://, azurekeyvault:// and hashivault://.
func OpenKeyWrapper(ctx context.Context, uri string) (KeyWrapper, error) {
	keeper, err := secrets.OpenKeeper(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open key wrapper: %w", err)
	}
	return keeper, nil
}
