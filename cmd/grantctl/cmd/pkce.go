package cmd

import (
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
)

var pkceCmd = &cobra.Command{
	Use:   "pkce",
	Short: "Generate a PKCE code verifier and its S256 challenge",
	Long: `Generates a fresh code verifier and the matching S256 code challenge.
Send the challenge on the authorization request and keep the verifier
for the token exchange.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		verifier := codeVerifier
		if verifier == "" {
			verifier = oauth2.GenerateVerifier()
		}
		challenge := oauth2.S256ChallengeFromVerifier(verifier)

		cmd.Printf("code_verifier:         %s\n", verifier)
		cmd.Printf("code_challenge:        %s\n", challenge)
		cmd.Printf("code_challenge_method: S256\n")
		return nil
	},
}

var codeVerifier string

func init() {
	pkceCmd.Flags().StringVar(&codeVerifier, "verifier", "", "derive the challenge from an existing verifier instead of generating one")
	rootCmd.AddCommand(pkceCmd)
}
