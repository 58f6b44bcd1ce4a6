// Command zelosifyctl runs operator tasks against the zelosify store:
// schema migrations, sample data and TOTP enrolment.
package main

import "os"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
