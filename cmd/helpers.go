package cmd

import (
	"fmt"
	"runtime"

	"github.com/cinelist/watchlist/internal/binding"
	"github.com/cinelist/watchlist/pkg/version"
)

func printVersion(verbose bool) {
	fmt.Println("watchlist version: ", version.WatchlistVersion, runtime.GOOS+"/"+runtime.GOARCH)
	if verbose {
		fmt.Println("  Commit: ", version.Commit)
		fmt.Println("  Built:  ", version.BuildDate)
		fmt.Println("  Go:     ", runtime.Version())
		printEnvelopeScheme()
	}
}

func printEnvelopeScheme() {
	fmt.Println("Envelope: ")
	fmt.Println("  Body:     AES-256-CBC, zero IV, PKCS7 padding, field", binding.FieldName)
	fmt.Println("  Key wrap: RSA PKCS#1 v1.5, header", binding.HeaderName)
}
