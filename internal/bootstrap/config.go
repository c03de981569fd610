package bootstrap

import (
	"fmt"
	"log"

	"github.com/go-authgate/idgate/internal/access"
	"github.com/go-authgate/idgate/internal/config"
	"github.com/go-authgate/idgate/internal/identitystore"
	"github.com/go-authgate/idgate/internal/passwordhash"
	"github.com/go-authgate/idgate/internal/stores"
)

// validateAllConfiguration validates all configuration settings
func validateAllConfiguration(cfg *config.Config) {
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if _, err := NewPasswordHash(cfg); err != nil {
		log.Fatalf("Invalid password hash configuration: %v", err)
	}
	if _, err := access.ParsePolicies(cfg.AccessPolicies); err != nil {
		log.Fatalf("Invalid access policies: %v", err)
	}
	if err := validateStoreSettings(cfg); err != nil {
		log.Fatalf("Invalid identity store configuration: %v", err)
	}
}

// validateStoreSettings checks the values Config.Validate leaves to their owning packages
func validateStoreSettings(cfg *config.Config) error {
	for env, value := range map[string]string{
		"MEMORY_VALIDATION_TYPES":   cfg.MemoryValidationTypes,
		"DATABASE_VALIDATION_TYPES": cfg.DatabaseValidationTypes,
		"LDAP_VALIDATION_TYPES":     cfg.LDAPValidationTypes,
		"HTTP_API_VALIDATION_TYPES": cfg.HTTPAPIValidationTypes,
	} {
		if _, err := identitystore.ParseValidationTypes(value); err != nil {
			return fmt.Errorf("%s: %w", env, err)
		}
	}
	for _, entry := range cfg.MemoryCallers {
		if _, _, err := stores.ParseMemoryCaller(entry); err != nil {
			return fmt.Errorf("MEMORY_CALLERS: %w", err)
		}
	}
	if _, err := identitystore.ParsePolicy(cfg.HandlerPolicy); err != nil {
		return fmt.Errorf("HANDLER_POLICY: %w", err)
	}
	return nil
}

// NewPasswordHash builds the configured password hash.
func NewPasswordHash(cfg *config.Config) (passwordhash.PasswordHash, error) {
	params, err := passwordhash.ParseParams(cfg.HashParameters)
	if err != nil {
		return nil, err
	}
	return passwordhash.New(cfg.HashAlgorithm, params)
}

func settingsFor(id string, priority int, types string) (identitystore.Settings, error) {
	t, err := identitystore.ParseValidationTypes(types)
	if err != nil {
		return identitystore.Settings{}, err
	}
	return identitystore.Settings{ID: id, Priority: priority, ValidationTypes: t}, nil
}
