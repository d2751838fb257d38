package main

import "github.com/frahmantamala/payroll-ledger/cmd"

func main() {
	cmd.Execute()
}
