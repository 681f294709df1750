package historycmder_test

import (
	"bytes"
	"context"
	"os"
	"strings"

	"github.com/charmbracelet/x/ansi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	historycmder "github.com/papercomputeco/serenity/cmd/serenity/history"
	"github.com/papercomputeco/serenity/pkg/config"
	"github.com/papercomputeco/serenity/pkg/history"
	"github.com/papercomputeco/serenity/pkg/logger"
	"github.com/papercomputeco/serenity/pkg/storage"
)

var _ = Describe("History command", func() {
	var (
		tmpDir string
		ctx    context.Context
		out    *bytes.Buffer
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "serenity-history-*")
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
		out = &bytes.Buffer{}
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	newCmd := func(args ...string) *cobra.Command {
		cmd := historycmder.NewHistoryCmd()
		cmd.PersistentFlags().String("config-dir", "", "")
		cmd.SetOut(out)
		cmd.SetArgs(append(args, "--config-dir", tmpDir))
		return cmd
	}

	openHistory := func() storage.Driver {
		driver, err := history.OpenDriver(ctx, config.StorageConfig{Driver: config.StorageSQLite}, tmpDir, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		return driver
	}

	seed := func() {
		driver := openHistory()
		defer driver.Close()

		Expect(driver.SetState(ctx, storage.StateChatID, "chat-3")).To(Succeed())
		Expect(driver.SetState(ctx, storage.StateAgent, "coder")).To(Succeed())
		for _, e := range []storage.Entry{
			{Role: storage.RoleBot, Message: "Hi, I am\n**Coder**.", Complete: true},
			{Role: storage.RoleUser, Message: "What is a channel?", Complete: true},
			{Role: storage.RoleBot, Message: "A typed " + strings.Repeat("pipe ", 30), Complete: false},
		} {
			e.ChatID = "chat-3"
			Expect(driver.Append(ctx, &e)).To(Succeed())
		}
	}

	It("reports an empty log", func() {
		Expect(newCmd().Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("No chat recorded"))
	})

	It("lists the last chat on one line per message", func() {
		seed()
		Expect(newCmd().Execute()).To(Succeed())

		text := ansi.Strip(out.String())
		Expect(text).To(ContainSubstring("chat-3"))
		Expect(text).To(ContainSubstring("coder"))
		Expect(text).To(ContainSubstring("1. [bot] Hi, I am **Coder**."))
		Expect(text).To(ContainSubstring("2. [user] What is a channel?"))
		Expect(text).To(ContainSubstring("pipe... (interrupted)"))
	})

	It("prints whole messages with --full", func() {
		seed()
		Expect(newCmd("--full").Execute()).To(Succeed())
		text := ansi.Strip(out.String())
		Expect(text).To(ContainSubstring("  1. [bot] Hi, I am\n" + strings.Repeat(" ", 11) + "**Coder**.\n"))
		Expect(text).NotTo(ContainSubstring("Hi, I am "))
	})

	It("clears the log", func() {
		seed()
		Expect(newCmd("--clear").Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("History cleared"))

		driver := openHistory()
		defer driver.Close()
		snap, err := history.Restore(ctx, driver)
		Expect(err).NotTo(HaveOccurred())
		Expect(snap.Empty()).To(BeTrue())
	})
})
