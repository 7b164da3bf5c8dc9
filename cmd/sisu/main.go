package main

import (
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/logrusorgru/aurora"

	"sisulang/internal/driver"
	"sisulang/internal/parser"
)

func usage() {
	fmt.Fprintln(os.Stderr, "sisu - ahead-of-time compiler")
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  sisu compile <input> [output]")
	fmt.Fprintln(os.Stderr, "  sisu ir <input>       print the LLVM module")
	fmt.Fprintln(os.Stderr, "  sisu ast <input>      dump the parsed program")
}

func main() {
	if len(os.Args) < 3 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "compile":
		input := os.Args[2]
		output := driver.DefaultOutput(input)
		if len(os.Args) > 3 {
			output = os.Args[3]
		}
		if err = driver.Compile(input, output); err == nil {
			fmt.Println(aurora.Green(fmt.Sprintf("compiled %s -> %s", input, output)))
		}
	case "ir":
		err = printIR(os.Args[2])
	case "ast":
		err = dumpAST(os.Args[2])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, aurora.Red("error:"), err)
		os.Exit(1)
	}
}

func printIR(input string) error {
	mod, err := driver.BuildModule(input)
	if err != nil {
		return err
	}
	fmt.Print(mod.String())
	return nil
}

func dumpAST(input string) error {
	src, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	prog, bag, err := parser.Parse(input, string(src))
	if err != nil {
		return err
	}
	if err := bag.Err(); err != nil {
		return err
	}
	spew.Dump(prog)
	return nil
}
