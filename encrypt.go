// seehuhn.de/go/pdfprotect - password protection for PDF files
// Copyright (C) 2025  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package pdf

import (
	"fmt"
	"slices"
)

// Cipher selects the encryption algorithm of the standard security handler.
type Cipher int

// These are the supported ciphers, from weakest to strongest.
const (
	CipherRC4_40  Cipher = iota + 1 // RC4 with a 40-bit key (V1)
	CipherRC4_128                   // RC4 with a 128-bit key (V2)
	CipherAES128                    // AES-128 in CBC mode (V4)
	CipherAES256                    // AES-256 in CBC mode (V5, revision 6)
)

func (c Cipher) String() string {
	switch c {
	case CipherRC4_40:
		return "RC4-40"
	case CipherRC4_128:
		return "RC4-128"
	case CipherAES128:
		return "AES-128"
	case CipherAES256:
		return "AES-256"
	default:
		return fmt.Sprintf("pdf.Cipher(%d)", int(c))
	}
}

// minVersion returns the earliest PDF version which supports the cipher.
func (c Cipher) minVersion() Version {
	switch c {
	case CipherRC4_40:
		return V1_1
	case CipherRC4_128:
		return V1_4
	case CipherAES128:
		return V1_6
	default:
		return V1_7
	}
}

// Policy describes how a document is encrypted.
type Policy struct {
	Cipher Cipher

	// Permissions lists the operations allowed with user access.
	Permissions Perm

	// EncryptMetadata specifies whether XMP metadata streams are encrypted.
	// Leaving metadata unencrypted requires CipherAES128 or CipherAES256.
	EncryptMetadata bool
}

// DefaultPolicy returns the policy used by the pdf-protect tool: AES-256,
// printing allowed and nothing else, metadata left in clear text.
func DefaultPolicy() Policy {
	return Policy{
		Cipher:          CipherAES256,
		Permissions:     PermPrintOnly,
		EncryptMetadata: false,
	}
}

// Check reports whether the policy can be used for writing.  An error is
// returned for unknown ciphers, and if metadata is to be left in clear text
// with a cipher which does not support crypt filters.
func (p Policy) Check() error {
	if p.Cipher < CipherRC4_40 || p.Cipher > CipherAES256 {
		return cryptoErrorf("unsupported cipher %s", p.Cipher)
	}
	if !p.EncryptMetadata && p.Cipher < CipherAES128 {
		return cryptoErrorf("%s cannot leave metadata unencrypted", p.Cipher)
	}
	return nil
}

// Encryption specifies the passwords and policy for writing an encrypted
// document.
type Encryption struct {
	// UserPassword is needed to open the document.  It may be empty.
	UserPassword string

	// OwnerPassword grants full access.  If this is empty, the user password
	// is used.
	OwnerPassword string

	Policy Policy
}

// Check verifies that the policy is valid and that both passwords can be
// represented for the selected cipher.  If Check succeeds, writing a
// document with these settings does not fail because of the encryption
// parameters.
func (e *Encryption) Check() error {
	err := e.Policy.Check()
	if err != nil {
		return err
	}
	prepare := padPasswd
	if e.Policy.Cipher == CipherAES256 {
		prepare = utf8Passwd
	}
	for _, passwd := range []string{e.UserPassword, e.OwnerPassword} {
		_, err := prepare(passwd)
		if err != nil {
			return err
		}
	}
	return nil
}

// SecurityInfo describes the encryption of a document which has been read
// from a file.
type SecurityInfo struct {
	Cipher    Cipher
	KeyLength int // in bits

	V int
	R int
	P int32

	// Permissions is the decoded form of P.
	Permissions Perm

	EncryptMetadata bool

	// OwnerAuthenticated is set if the document was opened using the owner
	// password.
	OwnerAuthenticated bool

	O, U, OE, UE, Perms []byte

	sec *stdSecHandler
}

func newSecurityInfo(enc *encryptInfo) *SecurityInfo {
	sec := enc.sec
	info := &SecurityInfo{
		V:                  enc.V,
		R:                  sec.R,
		P:                  int32(sec.P),
		Permissions:        permFromP(sec.R, sec.P),
		EncryptMetadata:    !sec.unencryptedMetaData,
		OwnerAuthenticated: sec.ownerAuthenticated,
		O:                  slices.Clone(sec.O),
		U:                  slices.Clone(sec.U),
		OE:                 slices.Clone(sec.OE),
		UE:                 slices.Clone(sec.UE),
		Perms:              slices.Clone(sec.Perms),
		sec:                sec,
	}

	cf := enc.stmF
	if cf == nil {
		cf = enc.strF
	}
	if cf != nil {
		info.KeyLength = cf.Length
		switch {
		case cf.Cipher == cipherRC4 && cf.Length == 40:
			info.Cipher = CipherRC4_40
		case cf.Cipher == cipherRC4:
			info.Cipher = CipherRC4_128
		case cf.Cipher == cipherAES && cf.Length == 128:
			info.Cipher = CipherAES128
		case cf.Cipher == cipherAES:
			info.Cipher = CipherAES256
		}
	}
	return info
}

// AuthenticateOwner checks whether passwd is the owner password of the
// document.  If the password is wrong, an [AuthenticationError] is
// returned.
func (info *SecurityInfo) AuthenticateOwner(passwd string) error {
	if info.sec == nil {
		return cryptoErrorf("no security handler")
	}
	err := info.sec.AuthenticateOwner(passwd)
	if err != nil {
		return err
	}
	info.OwnerAuthenticated = true
	return nil
}
