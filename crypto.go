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
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"io"

	"github.com/xdg-go/stringprep"
)

var (
	errInvalidPassword = errors.New("password cannot be represented")
	errCorrupted       = errors.New("corrupted ciphertext")
)

// encryptInfo holds the parameters and the key needed to encrypt or decrypt
// the strings and streams of one document.
type encryptInfo struct {
	sec *stdSecHandler

	V int

	strF *cryptFilter // strings
	stmF *cryptFilter // streams
}

// parseEncryptDict reads an encryption dictionary.  The entries of enc must
// be direct objects.  id is the first element of the trailer /ID array.
func parseEncryptDict(enc Dict, id []byte) (*encryptInfo, error) {
	filter, _ := enc["Filter"].(Name)
	if filter != "Standard" {
		return nil, cryptoErrorf("unsupported security handler %q", filter)
	}

	V, ok := enc["V"].(Integer)
	if !ok {
		return nil, cryptoErrorf("missing or invalid Encrypt.V")
	}

	res := &encryptInfo{V: int(V)}
	var keyBytes int
	switch V {
	case 1:
		cf := &cryptFilter{Cipher: cipherRC4, Length: 40}
		res.stmF = cf
		res.strF = cf
		keyBytes = 5
	case 2:
		cf := &cryptFilter{Cipher: cipherRC4, Length: 40}
		if obj, ok := enc["Length"].(Integer); ok {
			cf.Length = int(obj)
			if cf.Length < 40 || cf.Length > 128 || cf.Length%8 != 0 {
				return nil, cryptoErrorf("invalid Encrypt.Length=%d", cf.Length)
			}
		}
		res.stmF = cf
		res.strF = cf
		keyBytes = cf.Length / 8
	case 4, 5:
		CF, _ := enc["CF"].(Dict)
		stmF, _ := enc["StmF"].(Name)
		cf, err := getCryptFilter(stmF, CF)
		if err != nil {
			return nil, fmt.Errorf("StmF: %w", err)
		}
		res.stmF = cf
		strF, _ := enc["StrF"].(Name)
		cf, err = getCryptFilter(strF, CF)
		if err != nil {
			return nil, fmt.Errorf("StrF: %w", err)
		}
		res.strF = cf
		if V == 4 {
			keyBytes = 16
		} else {
			keyBytes = 32
		}
	default:
		return nil, cryptoErrorf("unsupported Encrypt.V=%d", V)
	}

	sec, err := openStdSecHandler(enc, keyBytes, id)
	if err != nil {
		return nil, err
	}
	res.sec = sec
	return res, nil
}

// newEncryptInfo sets up encryption for a new document with file
// identifier id.
func newEncryptInfo(id []byte, e *Encryption) (*encryptInfo, error) {
	policy := e.Policy
	err := policy.Check()
	if err != nil {
		return nil, err
	}
	res := &encryptInfo{}
	var cf *cryptFilter
	switch policy.Cipher {
	case CipherRC4_40:
		res.V = 1
		cf = &cryptFilter{Cipher: cipherRC4, Length: 40}
	case CipherRC4_128:
		res.V = 2
		cf = &cryptFilter{Cipher: cipherRC4, Length: 128}
	case CipherAES128:
		res.V = 4
		cf = &cryptFilter{Cipher: cipherAES, Length: 128}
	case CipherAES256:
		res.V = 5
		cf = &cryptFilter{Cipher: cipherAES, Length: 256}
	}
	res.stmF = cf
	res.strF = cf

	sec, err := createStdSecHandler(id, e.UserPassword, e.OwnerPassword,
		policy.Permissions, cf.Length, res.V, !policy.EncryptMetadata)
	if err != nil {
		return nil, err
	}
	res.sec = sec
	return res, nil
}

// AsDict returns the encryption dictionary for writing.
func (enc *encryptInfo) AsDict() Dict {
	sec := enc.sec
	dict := Dict{
		"Filter": Name("Standard"),
		"V":      Integer(enc.V),
		"R":      Integer(sec.R),
		"O":      String(sec.O),
		"U":      String(sec.U),
		"P":      Integer(int32(sec.P)),
	}
	switch enc.V {
	case 2:
		dict["Length"] = Integer(enc.stmF.Length)
	case 4:
		dict["Length"] = Integer(128)
		dict["StmF"] = Name("StdCF")
		dict["StrF"] = Name("StdCF")
		dict["CF"] = Dict{
			"StdCF": Dict{"Length": Integer(16), "CFM": Name("AESV2"), "AuthEvent": Name("DocOpen")},
		}
	case 5:
		dict["Length"] = Integer(256)
		dict["StmF"] = Name("StdCF")
		dict["StrF"] = Name("StdCF")
		dict["CF"] = Dict{
			"StdCF": Dict{"Length": Integer(32), "CFM": Name("AESV3"), "AuthEvent": Name("DocOpen")},
		}
	}
	if sec.unencryptedMetaData {
		dict["EncryptMetadata"] = Bool(false)
	}
	if sec.R >= 5 {
		dict["OE"] = String(sec.OE)
		dict["UE"] = String(sec.UE)
		dict["Perms"] = String(sec.Perms)
	}
	return dict
}

// EncryptString encrypts the contents of a string belonging to the
// indirect object ref.
func (enc *encryptInfo) EncryptString(ref Reference, buf []byte) ([]byte, error) {
	return enc.encrypt(enc.strF, ref, buf)
}

// DecryptString decrypts the contents of a string belonging to the
// indirect object ref.
func (enc *encryptInfo) DecryptString(ref Reference, buf []byte) ([]byte, error) {
	return enc.decrypt(enc.strF, ref, buf)
}

// EncryptStream encrypts the data of the stream ref.
func (enc *encryptInfo) EncryptStream(ref Reference, buf []byte) ([]byte, error) {
	return enc.encrypt(enc.stmF, ref, buf)
}

// DecryptStream decrypts the data of the stream ref.
func (enc *encryptInfo) DecryptStream(ref Reference, buf []byte) ([]byte, error) {
	return enc.decrypt(enc.stmF, ref, buf)
}

// encrypt implements Algorithm 1 of the PDF specification.
// The input is not modified.
func (enc *encryptInfo) encrypt(cf *cryptFilter, ref Reference, buf []byte) ([]byte, error) {
	if cf == nil {
		return buf, nil
	}
	key := enc.sec.keyForRef(cf, ref)

	switch cf.Cipher {
	case cipherAES:
		n := len(buf)
		nPad := 16 - n%16
		out := make([]byte, 16+n+nPad) // iv | c(data|padding)
		iv := out[:16]
		_, err := io.ReadFull(rand.Reader, iv)
		if err != nil {
			return nil, err
		}
		copy(out[16:], buf)
		for i := 16 + n; i < len(out); i++ {
			out[i] = byte(nPad)
		}

		c, err := aes.NewCipher(key)
		if err != nil {
			return nil, &CryptoError{Err: err}
		}
		cbc := cipher.NewCBCEncrypter(c, iv)
		cbc.CryptBlocks(out[16:], out[16:])
		return out, nil
	case cipherRC4:
		c, err := rc4.NewCipher(key)
		if err != nil {
			return nil, &CryptoError{Err: err}
		}
		out := make([]byte, len(buf))
		c.XORKeyStream(out, buf)
		return out, nil
	default:
		panic("unknown cipher")
	}
}

// decrypt reverses encrypt.  The input is not modified.
func (enc *encryptInfo) decrypt(cf *cryptFilter, ref Reference, buf []byte) ([]byte, error) {
	if cf == nil {
		return buf, nil
	}
	key := enc.sec.keyForRef(cf, ref)

	switch cf.Cipher {
	case cipherAES:
		// Some writers store empty strings without IV or padding.
		if len(buf) == 0 || len(buf) == 16 {
			return []byte{}, nil
		}
		if len(buf) < 32 || len(buf)%16 != 0 {
			return nil, &CryptoError{Err: errCorrupted}
		}
		c, err := aes.NewCipher(key)
		if err != nil {
			return nil, &CryptoError{Err: err}
		}
		out := make([]byte, len(buf)-16)
		cbc := cipher.NewCBCDecrypter(c, buf[:16])
		cbc.CryptBlocks(out, buf[16:])

		nPad := int(out[len(out)-1])
		if nPad < 1 || nPad > 16 {
			return nil, &CryptoError{Err: errCorrupted}
		}
		return out[:len(out)-nPad], nil
	case cipherRC4:
		c, err := rc4.NewCipher(key)
		if err != nil {
			return nil, &CryptoError{Err: err}
		}
		out := make([]byte, len(buf))
		c.XORKeyStream(out, buf)
		return out, nil
	default:
		panic("unknown cipher")
	}
}

// The stdSecHandler authenticates the user via a pair of passwords.
// The "user password" is used to access the contents of the document, the
// "owner password" can be used to control additional permissions, e.g.
// permission to print the document.
//
// This represents the PDF standard security handler, which is specified in
// section 7.6.4 of ISO 32000-2:2020.
type stdSecHandler struct {
	// R specified the revision of the standard security handler used.
	R int

	// ID is the first element of the ID array in the trailer dictionary.
	ID []byte

	// O is a byte string, based on the owner password, that is used in
	// computing the file encryption key and in determining whether a valid
	// owner password was entered.
	O []byte

	// U is a byte string, based on the owner and user password, that is used
	// in determining whether to prompt the user for a password and, if so,
	// whether a valid user or owner password was entered.
	U []byte

	OE    []byte
	UE    []byte
	Perms []byte

	// P is a set of flags specifying which operations shall be permitted when
	// the document is opened with user access.
	P uint32

	keyBytes int
	key      []byte

	// unencryptedMetaData specifies whether document-level XMP metadata
	// streams are left unencrypted.
	//
	// We use the negation of /EncryptMetadata from the PDF spec, so that
	// the Go default value (unencryptedMetaData==false) corresponds to the
	// PDF default value (/EncryptMetadata true).
	unencryptedMetaData bool

	ownerAuthenticated bool
}

// openStdSecHandler creates a new stdSecHandler from the encryption dictionary
// and the document ID.  This is used when reading existing PDF documents.
// The returned handler is not yet authenticated.
func openStdSecHandler(enc Dict, keyBytes int, id []byte) (*stdSecHandler, error) {
	R, ok := enc["R"].(Integer)
	if !ok || R < 2 || R > 6 {
		return nil, cryptoErrorf("unsupported Encrypt.R=%s", Format(enc["R"]))
	}
	V := enc["V"].(Integer)
	switch {
	case V < 4 && R > 3,
		V == 4 && R != 4,
		V == 5 && R < 5:
		return nil, cryptoErrorf("invalid combination V=%d, R=%d", V, R)
	}

	ouLength := 32
	if R >= 5 {
		ouLength = 48
	}

	// Some writers pad O and U with zero bytes.
	O, ok := enc["O"].(String)
	if !ok || len(O) < ouLength {
		return nil, cryptoErrorf("invalid Encrypt.O")
	}
	U, ok := enc["U"].(String)
	if !ok || len(U) < ouLength {
		return nil, cryptoErrorf("invalid Encrypt.U")
	}

	P, ok := enc["P"].(Integer)
	if !ok {
		return nil, cryptoErrorf("invalid Encrypt.P")
	}

	emd := true
	if obj, ok := enc["EncryptMetadata"].(Bool); ok && V >= 4 {
		emd = bool(obj)
	}

	sec := &stdSecHandler{
		ID:       id,
		keyBytes: keyBytes,

		R: int(R),
		O: []byte(O[:ouLength]),
		U: []byte(U[:ouLength]),
		P: uint32(P),

		unencryptedMetaData: !emd,
	}

	if R >= 5 {
		OE, ok := enc["OE"].(String)
		if !ok || len(OE) != 32 {
			return nil, cryptoErrorf("invalid Encrypt.OE")
		}
		sec.OE = []byte(OE)

		UE, ok := enc["UE"].(String)
		if !ok || len(UE) != 32 {
			return nil, cryptoErrorf("invalid Encrypt.UE")
		}
		sec.UE = []byte(UE)
	}
	if R == 6 {
		Perms, ok := enc["Perms"].(String)
		if !ok || len(Perms) != 16 {
			return nil, cryptoErrorf("invalid Encrypt.Perms")
		}
		sec.Perms = []byte(Perms)
	}

	return sec, nil
}

// createStdSecHandler allocates a new, pre-authenticated PDF Standard Security
// Handler.  This is used when creating new PDF documents.
func createStdSecHandler(id []byte, userPwd, ownerPwd string, perm Perm, length, V int, unencryptedMetaData bool) (*stdSecHandler, error) {
	if ownerPwd == "" {
		ownerPwd = userPwd
	}

	var R int
	switch {
	case V < 2 && perm.canR2():
		R = 2
	case V <= 3:
		R = 3
	case V == 4:
		R = 4
	case V == 5:
		R = 6
	default:
		return nil, cryptoErrorf("unsupported Encrypt.V=%d", V)
	}

	sec := &stdSecHandler{
		ID:       id,
		keyBytes: length / 8,
		R:        R,
		P:        permToP(perm),

		unencryptedMetaData: unencryptedMetaData,
		ownerAuthenticated:  true,
	}

	switch R {
	case 2, 3, 4:
		paddedUserPwd, err := padPasswd(userPwd)
		if err != nil {
			return nil, err
		}
		paddedOwnerPwd, err := padPasswd(ownerPwd)
		if err != nil {
			return nil, err
		}
		sec.O = sec.computeO(paddedUserPwd, paddedOwnerPwd)
		fileEncryptionKey := sec.computeFileEncryptionKey(paddedUserPwd)
		sec.U = sec.computeU(fileEncryptionKey)
		sec.key = fileEncryptionKey
	case 6:
		utf8UserPwd, err := utf8Passwd(userPwd)
		if err != nil {
			return nil, err
		}
		utf8OwnerPwd, err := utf8Passwd(ownerPwd)
		if err != nil {
			return nil, err
		}
		sec.key = make([]byte, 32)
		_, err = rand.Read(sec.key)
		if err != nil {
			return nil, err
		}
		sec.U, sec.UE, err = sec.computeUAndUE(utf8UserPwd)
		if err != nil {
			return nil, err
		}
		sec.O, sec.OE, err = sec.computeOAndOE(utf8OwnerPwd)
		if err != nil {
			return nil, err
		}
		sec.Perms = sec.computePerms(sec.key)
	}

	return sec, nil
}

// keyForRef computes the key used to encrypt the strings and streams of the
// indirect object ref (Algorithm 1).  The handler must be authenticated.
func (sec *stdSecHandler) keyForRef(cf *cryptFilter, ref Reference) []byte {
	if sec.R >= 5 {
		return sec.key
	}

	h := md5.New()
	h.Write(sec.key)
	num := ref.Number()
	gen := ref.Generation()
	h.Write([]byte{
		byte(num), byte(num >> 8), byte(num >> 16),
		byte(gen), byte(gen >> 8)})
	if cf.Cipher == cipherAES {
		h.Write([]byte("sAlT"))
	}
	l := min(sec.keyBytes+5, 16)
	return h.Sum(nil)[:l]
}

// Authenticate tries passwd first as the user password and then as the
// owner password.  On success, the file encryption key is available.
func (sec *stdSecHandler) Authenticate(passwd string) error {
	err := sec.authenticateUserPasswd(passwd)
	if err == nil {
		return nil
	}
	return sec.AuthenticateOwner(passwd)
}

func (sec *stdSecHandler) authenticateUserPasswd(passwd string) error {
	if sec.R < 5 {
		padded, err := padPasswd(passwd)
		if err != nil {
			return &AuthenticationError{ID: sec.ID}
		}
		return sec.authenticateUser(padded)
	}
	prepared, err := utf8Passwd(passwd)
	if err != nil {
		return &AuthenticationError{ID: sec.ID}
	}
	return sec.authenticateUser6(prepared)
}

// AuthenticateOwner checks whether passwd is the owner password.
func (sec *stdSecHandler) AuthenticateOwner(passwd string) error {
	if sec.R < 5 {
		padded, err := padPasswd(passwd)
		if err != nil {
			return &AuthenticationError{ID: sec.ID}
		}
		return sec.authenticateOwner(padded)
	}
	prepared, err := utf8Passwd(passwd)
	if err != nil {
		return &AuthenticationError{ID: sec.ID}
	}
	return sec.authenticateOwner6(prepared)
}

// Algorithm 2: compute the file encryption key for R <= 4.
// pw must be the padded password.
func (sec *stdSecHandler) computeFileEncryptionKey(paddedUserPwd []byte) []byte {
	h := md5.New()
	h.Write(paddedUserPwd)
	h.Write(sec.O)
	h.Write([]byte{
		byte(sec.P), byte(sec.P >> 8), byte(sec.P >> 16), byte(sec.P >> 24)})
	h.Write(sec.ID)
	if sec.unencryptedMetaData && sec.R >= 4 {
		h.Write([]byte{255, 255, 255, 255})
	}
	key := h.Sum(nil)

	if sec.R >= 3 {
		for range 50 {
			h.Reset()
			h.Write(key[:sec.keyBytes])
			key = h.Sum(key[:0])
		}
	}

	return key[:sec.keyBytes]
}

// passwordHash computes the password hash for revisions 5 and 6.  Revision 5 uses
// a single round of SHA-256, revision 6 uses Algorithm 2.B.
func (sec *stdSecHandler) passwordHash(passwd, salt, U []byte) []byte {
	if sec.R == 5 {
		h := sha256.New()
		h.Write(passwd)
		h.Write(salt)
		h.Write(U)
		return h.Sum(nil)
	}
	return slowHash(passwd, salt, U)
}

// Algorithm 2.B: Computing a hash (revision 6 and later)
func slowHash(passwd, salt, U []byte) []byte {
	// Take the SHA-256 hash of the original input to the algorithm and name
	// the resulting 32 bytes K.
	h := sha256.New()
	h.Write(passwd)
	h.Write(salt)
	h.Write(U)
	K := h.Sum(nil)

	K1 := make([]byte, 64*(len(passwd)+64+len(U)))

	// Perform the following steps (a)-(d) 64 times, then continue until
	// the last byte of E is at most (round number) - 32.
	for i := 0; i < 64 || int(K1[len(K1)-1]) > i-32; i++ {
		// a) K1 consists of 64 repetitions of password, K and the
		// 48-byte user key (only when checking or creating the owner key).
		K1 = K1[:0]
		for range 64 {
			K1 = append(K1, passwd...)
			K1 = append(K1, K...)
			K1 = append(K1, U...)
		}

		// b) Encrypt K1 with AES-128 (CBC, no padding), using the first 16
		// bytes of K as the key and the second 16 bytes as the IV.  The
		// result is E.  The length of K1 is a multiple of 64.
		c, _ := aes.NewCipher(K[:16])
		cbc := cipher.NewCBCEncrypter(c, K[16:32])
		cbc.CryptBlocks(K1, K1)

		// c) The first 16 bytes of E, as a big-endian integer, modulo 3
		// select the next hash.  Since 256 = 1 (mod 3), we can just add
		// all bytes.
		var rem int
		for _, b := range K1[:16] {
			rem += int(b)
		}
		var h hash.Hash
		switch rem % 3 {
		case 0:
			h = sha256.New()
		case 1:
			h = sha512.New384()
		case 2:
			h = sha512.New()
		}

		// d) The hash of E is the new value of K.
		h.Write(K1)
		K = h.Sum(K[:0])
	}

	// The first 32 bytes of the final K are the output of the algorithm.
	return K[:32]
}

// ownerRC4Key derives the RC4 key used for the O entry (Algorithm 3,
// steps a to d).
func (sec *stdSecHandler) ownerRC4Key(paddedOwnerPwd []byte) []byte {
	h := md5.New()
	h.Write(paddedOwnerPwd)
	sum := h.Sum(nil)
	if sec.R >= 3 {
		for range 50 {
			h.Reset()
			// The spec does not mention the truncation, but this seems to be
			// required anyway.
			h.Write(sum[:sec.keyBytes])
			sum = h.Sum(sum[:0])
		}
	}
	return sum[:sec.keyBytes]
}

// Algorithm 3: compute O.
func (sec *stdSecHandler) computeO(paddedUserPwd, paddedOwnerPwd []byte) []byte {
	rc4key := sec.ownerRC4Key(paddedOwnerPwd)

	c, _ := rc4.NewCipher(rc4key)
	O := make([]byte, 32)
	c.XORKeyStream(O, paddedUserPwd)
	if sec.R >= 3 {
		key := make([]byte, len(rc4key))
		for i := byte(1); i <= 19; i++ {
			for j := range key {
				key[j] = rc4key[j] ^ i
			}
			c, _ = rc4.NewCipher(key)
			c.XORKeyStream(O, O)
		}
	}
	return O
}

// Algorithm 4/5: compute U.
func (sec *stdSecHandler) computeU(fileEncryptionKey []byte) []byte {
	U := make([]byte, 32)
	switch sec.R {
	case 2:
		c, _ := rc4.NewCipher(fileEncryptionKey)
		c.XORKeyStream(U, passwdPad)
	case 3, 4:
		h := md5.New()
		h.Write(passwdPad)
		h.Write(sec.ID)
		U = h.Sum(U[:0])
		c, _ := rc4.NewCipher(fileEncryptionKey)
		c.XORKeyStream(U, U)

		tmpKey := make([]byte, len(fileEncryptionKey))
		for i := byte(1); i <= 19; i++ {
			for j := range tmpKey {
				tmpKey[j] = fileEncryptionKey[j] ^ i
			}
			c, _ = rc4.NewCipher(tmpKey)
			c.XORKeyStream(U, U)
		}
		// This gives the first 16 bytes of U, the remaining 16 bytes
		// are "arbitrary padding".
		U = append(U[:16], make([]byte, 16)...)
	default:
		panic("invalid security handler revision")
	}

	return U
}

// Algorithm 6: Authenticating the user password (revision 4 and earlier)
func (sec *stdSecHandler) authenticateUser(paddedUserPwd []byte) error {
	key := sec.computeFileEncryptionKey(paddedUserPwd)
	U := sec.computeU(key)
	n := 32
	if sec.R >= 3 {
		n = 16
	}
	if !bytes.Equal(U[:n], sec.U[:n]) {
		return &AuthenticationError{ID: sec.ID}
	}
	sec.key = key
	return nil
}

// Algorithm 7: Authenticating the owner password (revision 4 and earlier)
func (sec *stdSecHandler) authenticateOwner(paddedOwnerPwd []byte) error {
	key := sec.ownerRC4Key(paddedOwnerPwd)

	buf := make([]byte, 32)
	copy(buf, sec.O)
	switch sec.R {
	case 2:
		c, _ := rc4.NewCipher(key)
		c.XORKeyStream(buf, buf)
	case 3, 4:
		tmpKey := make([]byte, len(key))
		for i := 19; i >= 0; i-- {
			for j := range tmpKey {
				tmpKey[j] = key[j] ^ byte(i)
			}
			c, _ := rc4.NewCipher(tmpKey)
			c.XORKeyStream(buf, buf)
		}
	}

	err := sec.authenticateUser(buf)
	if err != nil {
		return err
	}
	sec.ownerAuthenticated = true
	return nil
}

// Algorithm 8: Computing U and UE (revision 6)
func (sec *stdSecHandler) computeUAndUE(utf8UserPwd []byte) ([]byte, []byte, error) {
	salt := make([]byte, 16)
	_, err := rand.Read(salt)
	if err != nil {
		return nil, nil, err
	}

	out := slowHash(utf8UserPwd, salt[:8], nil) // user validation salt
	U := make([]byte, 0, 48)
	U = append(U, out...)
	U = append(U, salt...)

	key := slowHash(utf8UserPwd, salt[8:], nil) // user key salt
	c, _ := aes.NewCipher(key)
	cbc := cipher.NewCBCEncrypter(c, zero16)
	UE := make([]byte, 32)
	cbc.CryptBlocks(UE, sec.key)

	return U, UE, nil
}

// Algorithm 9: Computing O and OE (revision 6)
func (sec *stdSecHandler) computeOAndOE(utf8OwnerPwd []byte) ([]byte, []byte, error) {
	salt := make([]byte, 16)
	_, err := rand.Read(salt)
	if err != nil {
		return nil, nil, err
	}

	out := slowHash(utf8OwnerPwd, salt[:8], sec.U) // owner validation salt
	O := make([]byte, 0, 48)
	O = append(O, out...)
	O = append(O, salt...)

	key := slowHash(utf8OwnerPwd, salt[8:], sec.U) // owner key salt
	c, _ := aes.NewCipher(key)
	cbc := cipher.NewCBCEncrypter(c, zero16)
	OE := make([]byte, 32)
	cbc.CryptBlocks(OE, sec.key)

	return O, OE, nil
}

// Algorithm 10: Computing the Perms value (revision 6)
func (sec *stdSecHandler) computePerms(fileEncryptionKey []byte) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf, sec.P)
	buf[4] = 0xFF
	buf[5] = 0xFF
	buf[6] = 0xFF
	buf[7] = 0xFF
	if sec.unencryptedMetaData {
		buf[8] = 'F'
	} else {
		buf[8] = 'T'
	}
	buf[9] = 'a'
	buf[10] = 'd'
	buf[11] = 'b'
	_, _ = rand.Read(buf[12:])

	c, _ := aes.NewCipher(fileEncryptionKey)
	c.Encrypt(buf, buf)
	return buf
}

// Algorithm 11: Authenticating the user password (revision 5 and 6)
func (sec *stdSecHandler) authenticateUser6(utf8Passwd []byte) error {
	hash := sec.passwordHash(utf8Passwd, sec.U[32:40], nil)
	if !bytes.Equal(hash, sec.U[:32]) {
		return &AuthenticationError{ID: sec.ID}
	}

	key := sec.passwordHash(utf8Passwd, sec.U[40:48], nil) // user key salt
	c, _ := aes.NewCipher(key)
	cbc := cipher.NewCBCDecrypter(c, zero16)
	fileEncryptionKey := make([]byte, 32)
	cbc.CryptBlocks(fileEncryptionKey, sec.UE)

	err := sec.checkPerms(fileEncryptionKey)
	if err != nil {
		return err
	}

	sec.key = fileEncryptionKey
	return nil
}

// Algorithm 12: Authenticating the owner password (revision 5 and 6)
func (sec *stdSecHandler) authenticateOwner6(utf8Passwd []byte) error {
	hash := sec.passwordHash(utf8Passwd, sec.O[32:40], sec.U)
	if !bytes.Equal(hash, sec.O[:32]) {
		return &AuthenticationError{ID: sec.ID}
	}

	key := sec.passwordHash(utf8Passwd, sec.O[40:48], sec.U) // owner key salt
	c, _ := aes.NewCipher(key)
	cbc := cipher.NewCBCDecrypter(c, zero16)
	fileEncryptionKey := make([]byte, 32)
	cbc.CryptBlocks(fileEncryptionKey, sec.OE)

	err := sec.checkPerms(fileEncryptionKey)
	if err != nil {
		return err
	}

	sec.key = fileEncryptionKey
	sec.ownerAuthenticated = true
	return nil
}

// Algorithm 13: Validating the permissions (revision 6)
func (sec *stdSecHandler) checkPerms(fileEncryptionKey []byte) error {
	if sec.R < 6 {
		return nil
	}

	buf := make([]byte, 16)
	c, _ := aes.NewCipher(fileEncryptionKey)
	c.Decrypt(buf, sec.Perms)
	if !bytes.Equal(buf[9:12], []byte{'a', 'd', 'b'}) {
		return &AuthenticationError{ID: sec.ID}
	}
	perms := binary.LittleEndian.Uint32(buf[:4])
	if perms != sec.P {
		return cryptoErrorf("Perms does not match P")
	}

	var emdCode byte
	if sec.unencryptedMetaData {
		emdCode = 'F'
	} else {
		emdCode = 'T'
	}
	if buf[8] != emdCode {
		return cryptoErrorf("Perms does not match EncryptMetadata")
	}

	return nil
}

// utf8Passwd prepares a password for revisions 5 and 6.
func utf8Passwd(passwd string) ([]byte, error) {
	prepped, err := stringprep.SASLprep.Prepare(passwd)
	if err != nil {
		return nil, errInvalidPassword
	}
	buf := []byte(prepped)
	if len(buf) > 127 {
		buf = buf[:127]
	}
	return buf, nil
}

// padPasswd prepares a password for revisions 2 to 4.
// The result has length 32.
func padPasswd(passwd string) ([]byte, error) {
	buf, ok := passwordBytes(passwd)
	if !ok {
		return nil, errInvalidPassword
	}

	padded := make([]byte, 32)
	n := copy(padded, buf)
	copy(padded[n:], passwdPad)

	return padded, nil
}

var passwdPad = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

var zero16 = make([]byte, 16)

type cryptFilter struct {
	Cipher cipherType

	// Length is the key length in bits.
	Length int
}

func (cf *cryptFilter) String() string {
	return fmt.Sprintf("%s-%d", cf.Cipher, cf.Length)
}

// getCryptFilter looks up a crypt filter in the /CF dictionary.
// The Identity filter (also used when no name is given) is
// represented by nil.
func getCryptFilter(cryptFilterName Name, CF Dict) (*cryptFilter, error) {
	if cryptFilterName == "" || cryptFilterName == "Identity" {
		return nil, nil
	}
	cfDict, ok := CF[cryptFilterName].(Dict)
	if !ok {
		return nil, cryptoErrorf("missing crypt filter %q", cryptFilterName)
	}

	res := &cryptFilter{}
	switch cfDict["CFM"] {
	case Name("V2"):
		res.Cipher = cipherRC4
		res.Length = 128
		if l, ok := cfDict["Length"].(Integer); ok && l >= 5 && l <= 16 {
			res.Length = int(l) * 8
		}
	case Name("AESV2"):
		res.Cipher = cipherAES
		res.Length = 128
	case Name("AESV3"):
		res.Cipher = cipherAES
		res.Length = 256
	case Name("None"), nil:
		return nil, nil
	default:
		return nil, cryptoErrorf("unsupported crypt filter method %s", Format(cfDict["CFM"]))
	}
	return res, nil
}

// cipherType denotes the type of encryption used in (parts of) a PDF file.
type cipherType int

const (
	cipherUnknown cipherType = iota

	// cipherRC4 corresponds to the crypt filter method V2.
	cipherRC4

	// cipherAES corresponds to the crypt filter methods AESV2 and AESV3
	// (AES in CBC mode).
	cipherAES
)

func (c cipherType) String() string {
	switch c {
	case cipherUnknown:
		return "unknown"
	case cipherRC4:
		return "RC4"
	case cipherAES:
		return "AES"
	default:
		return fmt.Sprintf("cipher#%d", c)
	}
}
