package app

import (
	"math/rand/v2"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

var alphabets = [][]rune{
	[]rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"),
	[]rune("!@#$%^&*()_+-=[]{};':\",./<>? \t"),
	[]rune("äöüßéèñçøåœ"),
	[]rune("日本語中文한국어"),
	[]rune("😀🔧⚙️🏭"),
}

func randomPlaintext(r *rand.Rand) string {
	n := r.IntN(41)
	var b strings.Builder
	for range n {
		a := alphabets[r.IntN(len(alphabets))]
		b.WriteRune(a[r.IntN(len(a))])
	}
	return b.String()
}

func TestPasswordHasher_RoundTrip(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	r := rand.New(rand.NewPCG(1, 2))

	inputs := []string{
		"", "パスワード", "pässwörd", "🔐🔐🔐",
		strings.Repeat("日本語", 9),
		strings.Repeat("a", 72),
		strings.Repeat("a", 200),
	}
	for len(inputs) < 100 {
		inputs = append(inputs, randomPlaintext(r))
	}

	for _, plain := range inputs {
		hash, err := h.Hash(plain)
		if err != nil {
			t.Fatalf("Hash(%q): %v", plain, err)
		}
		if hash == plain {
			t.Fatalf("hash equals plaintext for %q", plain)
		}
		if !h.Verify(plain, hash) {
			t.Errorf("Verify(%q) = false for its own hash", plain)
		}
		if h.Verify(plain+"x", hash) {
			t.Errorf("Verify accepted %q for hash of %q", plain+"x", plain)
		}
		other := randomPlaintext(r)
		if other != plain && h.Verify(other, hash) {
			t.Errorf("Verify accepted %q for hash of %q", other, plain)
		}
	}
}

func TestPasswordHasher_LongPasswords(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	long := strings.Repeat("日本語", 9) // 81 bytes
	hash, err := h.Hash(long)
	if err != nil {
		t.Fatalf("Hash of %d-byte password: %v", len(long), err)
	}
	if !h.Verify(long, hash) {
		t.Error("Verify rejected the long password")
	}

	prefix := strings.Repeat("a", 72)
	hash, err = h.Hash(prefix)
	if err != nil {
		t.Fatal(err)
	}
	if h.Verify(prefix+"DIFFERENT", hash) {
		t.Error("Verify accepted a password sharing the first 72 bytes")
	}

	hash, err = h.Hash(prefix + "one")
	if err != nil {
		t.Fatal(err)
	}
	if h.Verify(prefix+"two", hash) {
		t.Error("Verify ignored bytes past 72")
	}
}

func TestPasswordHasher_HashesAreSalted(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	a, _ := h.Hash("same")
	b, _ := h.Hash("same")
	if a == b {
		t.Error("identical hashes for identical input")
	}
}

func TestPasswordHasher_Cost(t *testing.T) {
	if got := NewPasswordHasher(1).Cost; got != bcrypt.DefaultCost {
		t.Errorf("cost below minimum = %d, want default", got)
	}
	h := NewPasswordHasher(5)
	hash, _ := h.Hash("pw")
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil || cost != 5 {
		t.Errorf("bcrypt.Cost = %d, %v; want 5", cost, err)
	}
}

func TestPasswordHasher_EmptyHashNeverMatches(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	if h.Verify("", "") || h.Verify("pw", "") {
		t.Error("empty hash matched")
	}
	if h.Verify("pw", "not-a-bcrypt-hash") {
		t.Error("malformed hash matched")
	}
}
