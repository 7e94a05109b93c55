// kteeth - session, token, and OAuth authentication backend
// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags plus the cross-field rules the tags
// cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			// Report the first failure with its config path for a
			// readable startup error.
			fe := fieldErrs[0]
			return fmt.Errorf("invalid config field %s: failed %q rule", fe.Namespace(), fe.Tag())
		}
		return err
	}

	switch c.Profile {
	case ProfileProduction:
		if c.JWT.PrivateKey == "" {
			return errors.New("production profile requires jwt.private_key (base64 PKCS#8)")
		}
		if c.JWT.KeyID == "" {
			return errors.New("production profile requires jwt.key_id")
		}
	case ProfileTest:
		if c.JWT.Secret == "" {
			return errors.New("test profile requires jwt.secret")
		}
	}

	if c.Security.SessionStore == "badger" && c.Security.SessionStorePath == "" {
		return errors.New("badger session store requires security.session_store_path")
	}

	return nil
}
