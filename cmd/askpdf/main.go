package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var cfgPath string
	root := &cobra.Command{
		Use:          "askpdf",
		Short:        "Chat with the content of your PDFs",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default ./config.yaml or ./config/config.yaml)")

	root.AddCommand(serveCMD(&cfgPath), chatCMD(&cfgPath))
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
