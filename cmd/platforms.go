/*
Copyright © 2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"fmt"
	"strings"

	"github.com/blacktop/sendto/internal/config"
	"github.com/blacktop/sendto/internal/publish"
	"github.com/spf13/cobra"
)

func newPlatformsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "platforms",
		Short: "List supported platforms and whether they are configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := config.Load(configPath, config.WithEnvFile(envFile))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, name := range publish.SupportedPlatforms {
				values := settings.Platforms[name]
				for key, v := range settings.Platforms {
					if canonical, _ := publish.CanonicalName(key); canonical == name {
						values = v
					}
				}
				if missing := publish.MissingKeys(name, values); len(missing) > 0 {
					fmt.Fprintf(out, "%-9s not configured (missing %s)\n", name, strings.Join(missing, ", "))
					continue
				}
				fmt.Fprintf(out, "%-9s configured\n", name)
			}
			return nil
		},
	}
}
