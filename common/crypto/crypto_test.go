package crypto_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"momentiq.app/pipeline/common/crypto"
)

var _ = Describe("Keeper", func() {
	key := strings.Repeat("ab", 32) // 32 bytes hex-encoded

	It("round-trips sealed values", func() {
		keeper, err := crypto.NewKeeper(key)
		Expect(err).ToNot(HaveOccurred())

		sealed, err := keeper.Seal([]byte(`{"webhook_secret":"s3cret"}`))
		Expect(err).ToNot(HaveOccurred())
		Expect(sealed).ToNot(ContainSubstring("s3cret"))

		opened, err := keeper.Open(sealed)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(opened)).To(Equal(`{"webhook_secret":"s3cret"}`))
	})

	It("produces distinct ciphertexts for the same plaintext", func() {
		keeper, err := crypto.NewKeeper(key)
		Expect(err).ToNot(HaveOccurred())

		a, err := keeper.Seal([]byte("same"))
		Expect(err).ToNot(HaveOccurred())
		b, err := keeper.Seal([]byte("same"))
		Expect(err).ToNot(HaveOccurred())
		Expect(a).ToNot(Equal(b))
	})

	It("rejects keys that are not 32 bytes", func() {
		_, err := crypto.NewKeeper("abcd")
		Expect(err).To(HaveOccurred())
	})

	It("rejects non-hex keys", func() {
		_, err := crypto.NewKeeper(strings.Repeat("zz", 32))
		Expect(err).To(HaveOccurred())
	})

	It("rejects tampered and truncated sealed values", func() {
		keeper, err := crypto.NewKeeper(key)
		Expect(err).ToNot(HaveOccurred())

		sealed, err := keeper.Seal([]byte("payload"))
		Expect(err).ToNot(HaveOccurred())

		_, err = keeper.Open("AAAA")
		Expect(err).To(HaveOccurred())

		_, err = keeper.Open("not-base64!!")
		Expect(err).To(HaveOccurred())

		tampered := "A" + sealed[1:]
		if tampered == sealed {
			tampered = "B" + sealed[1:]
		}
		_, err = keeper.Open(tampered)
		Expect(err).To(HaveOccurred())
	})

	It("fails to open with a different key", func() {
		keeper, err := crypto.NewKeeper(key)
		Expect(err).ToNot(HaveOccurred())
		other, err := crypto.NewKeeper(strings.Repeat("cd", 32))
		Expect(err).ToNot(HaveOccurred())

		sealed, err := keeper.Seal([]byte("payload"))
		Expect(err).ToNot(HaveOccurred())

		_, err = other.Open(sealed)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("passwords", func() {
	It("verifies a hashed password and rejects others", func() {
		hash, err := crypto.HashPassword("correct horse")
		Expect(err).ToNot(HaveOccurred())
		Expect(hash).ToNot(Equal("correct horse"))

		Expect(crypto.VerifyPassword(hash, "correct horse")).To(BeTrue())
		Expect(crypto.VerifyPassword(hash, "battery staple")).To(BeFalse())
		Expect(crypto.VerifyPassword("not-a-hash", "correct horse")).To(BeFalse())
	})
})

var _ = Describe("Anonymizer", func() {
	It("is deterministic per salt", func() {
		a := crypto.NewAnonymizer("salt-1")
		Expect(a.Anonymize("user-77")).To(Equal(a.Anonymize("user-77")))
		Expect(a.Anonymize("user-77")).ToNot(Equal(a.Anonymize("user-78")))
	})

	It("changes output across salts", func() {
		a := crypto.NewAnonymizer("salt-1")
		b := crypto.NewAnonymizer("salt-2")
		Expect(a.Anonymize("user-77")).ToNot(Equal(b.Anonymize("user-77")))
	})

	It("never echoes the input", func() {
		a := crypto.NewAnonymizer("salt-1")
		out := a.Anonymize("user-77")
		Expect(out).ToNot(ContainSubstring("user-77"))
		Expect(out).To(HaveLen(64))
	})
})
