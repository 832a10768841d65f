package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"tungo/domain/relay"
)

// Creator persists a freshly generated Configuration to disk, grounded on
// PAL/configuration/client.DefaultCreator.
type Creator interface {
	Create(cfg Configuration) error
}

type DefaultCreator struct {
	resolver Resolver
}

func NewDefaultCreator(resolver Resolver) Creator {
	return &DefaultCreator{resolver: resolver}
}

func (d *DefaultCreator) Create(cfg Configuration) error {
	path, err := d.resolver.Resolve()
	if err != nil {
		return err
	}

	serialized, err := json.MarshalIndent(cfg, "", "\t")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, serialized, 0600)
}

// Generate produces a fresh client keypair and returns a Configuration bound
// to serverURL/serverPublicKey, ready to be written by a Creator.
func Generate(serverURL string, serverPublicKey []byte) (Configuration, error) {
	kp, err := relay.GenerateKeypair()
	if err != nil {
		return Configuration{}, err
	}
	return Configuration{
		ServerURL:        serverURL,
		ServerPublicKey:  serverPublicKey,
		ClientPrivateKey: kp.Private,
		ClientPublicKey:  kp.Public,
	}, nil
}
