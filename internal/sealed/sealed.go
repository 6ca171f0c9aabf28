// Package sealed wraps backup streams in age encryption.
package sealed

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"
)

const recipientPrefix = "age1"

// ParseRecipients resolves each entry to age recipients. An entry is either an
// "age1..." public key or the path of a recipients file with one key per line.
func ParseRecipients(entries []string) ([]age.Recipient, error) {
	var out []age.Recipient
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.HasPrefix(entry, recipientPrefix) {
			r, err := age.ParseX25519Recipient(entry)
			if err != nil {
				return nil, fmt.Errorf("recipient %q: %w", entry, err)
			}
			out = append(out, r)
			continue
		}
		rs, err := recipientsFromFile(entry)
		if err != nil {
			return nil, err
		}
		out = append(out, rs...)
	}
	return out, nil
}

func recipientsFromFile(path string) ([]age.Recipient, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("recipients file: %w", err)
	}
	defer f.Close()
	rs, err := age.ParseRecipients(f)
	if err != nil {
		return nil, fmt.Errorf("recipients file %s: %w", path, err)
	}
	return rs, nil
}

// LoadIdentities reads an age identity file. Comment and blank lines are skipped.
func LoadIdentities(path string) ([]age.Identity, error) {
	if path == "" {
		return nil, errors.New("no identity file given")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("identity file: %w", err)
	}
	defer f.Close()
	ids, err := age.ParseIdentities(f)
	if err != nil {
		return nil, fmt.Errorf("identity file %s: %w", path, err)
	}
	return ids, nil
}

// Encrypt returns a writer that encrypts to all recipients. Close must be called to flush the last chunk.
func Encrypt(w io.Writer, recipients ...age.Recipient) (io.WriteCloser, error) {
	if len(recipients) == 0 {
		return nil, errors.New("no recipients")
	}
	return age.Encrypt(w, recipients...)
}

// Decrypt returns a reader over the plaintext of r.
func Decrypt(r io.Reader, identities ...age.Identity) (io.Reader, error) {
	if len(identities) == 0 {
		return nil, errors.New("no identities")
	}
	return age.Decrypt(r, identities...)
}
