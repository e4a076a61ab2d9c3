package mindlinkcmder_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	mindlinkcmder "github.com/mindlinkco/mindlink/cmd/mindlink"
)

var _ = Describe("NewMindlinkCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := mindlinkcmder.NewMindlinkCmd()
		Expect(cmd.Use).To(Equal("mindlink"))
	})

	It("has serve and version subcommands", func() {
		cmd := mindlinkcmder.NewMindlinkCmd()
		cmds := cmd.Commands()
		subcommands := make([]string, 0, len(cmds))
		for _, sub := range cmds {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("serve", "version"))
	})

	It("exposes the global debug and config flags", func() {
		cmd := mindlinkcmder.NewMindlinkCmd()
		Expect(cmd.PersistentFlags().Lookup("debug")).NotTo(BeNil())
		Expect(cmd.PersistentFlags().Lookup("config")).NotTo(BeNil())
	})
})
