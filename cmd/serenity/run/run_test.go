package runcmder_test

import (
	"bytes"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	runcmder "github.com/papercomputeco/serenity/cmd/serenity/run"
	"github.com/papercomputeco/serenity/cmd/serenity/bootstrap"
	"github.com/papercomputeco/serenity/pkg/credentials"
	"github.com/papercomputeco/serenity/pkg/serenity"
	testutils "github.com/papercomputeco/serenity/pkg/utils/test"
)

var _ = Describe("Run command", func() {
	var (
		tmpDir string
		fake   *testutils.FakeAgent
		out    *bytes.Buffer
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "serenity-run-*")
		Expect(err).NotTo(HaveOccurred())

		fake = testutils.NewFakeAgent()
		out = &bytes.Buffer{}
		GinkgoT().Setenv(credentials.EnvAPIKey, "")
	})

	AfterEach(func() {
		fake.Close()
		os.RemoveAll(tmpDir)
	})

	newCmd := func(args ...string) *cobra.Command {
		cmd := runcmder.NewRunCmd()
		cmd.PersistentFlags().String("config-dir", "", "")
		cmd.SetOut(out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(append(args, "--config-dir", tmpDir))
		return cmd
	}

	It("needs an API key", func() {
		Expect(newCmd("translator").Execute()).To(MatchError(bootstrap.ErrSetupIncomplete))
	})

	It("rejects parameters without a value", func() {
		Expect(newCmd("translator", "message").Execute()).To(MatchError(ContainSubstring("expected key=value")))
	})

	Context("with an API key", func() {
		BeforeEach(func() {
			Expect(testutils.CompleteSetup(tmpDir, fake.Server.URL, "coder")).To(Succeed())
		})

		It("sends the parameters and prints the content", func() {
			fake.RespondLegacy(`{"text":"Hello world"}`)

			Expect(newCmd("translator", "message=Hola mundo", "target=en").Execute()).To(Succeed())

			Expect(out.String()).To(Equal("{\"text\":\"Hello world\"}\n"))
			Expect(fake.Runs()).To(Equal([][]serenity.Param{{
				{Key: "message", Value: "Hola mundo"},
				{Key: "target", Value: "en"},
			}}))
		})

		It("keeps equals signs in values", func() {
			Expect(newCmd("calc", "expr=a=b").Execute()).To(Succeed())
			Expect(fake.Runs()[0]).To(Equal([]serenity.Param{{Key: "expr", Value: "a=b"}}))
		})
	})
})
