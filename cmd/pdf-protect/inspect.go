// seehuhn.de/go/pdfprotect - password protection for PDF files
// Copyright (C) 2025  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"fmt"
	"os"

	"github.com/midbel/hexdump"
	"github.com/spf13/cobra"

	pdf "seehuhn.de/go/pdfprotect"
	"seehuhn.de/go/pdfprotect/pagetree"
	"seehuhn.de/go/pdfprotect/verify"
)

func newInfoCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "info FILE",
		Short: "Display the encryption parameters of a PDF file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args[0], password)
		},
	}
	cmd.Flags().StringVarP(&password, "password", "P", "", "user or owner password of the file")
	return cmd
}

func runInfo(fname, password string) error {
	doc, err := pdf.Open(fname, &pdf.ReaderOptions{Password: password})
	if err != nil {
		return err
	}

	fmt.Println("PDF Encryption Information")
	fmt.Println("==========================")
	fmt.Printf("File:        %s\n", fname)
	fmt.Printf("PDF Version: %s\n", doc.Version)
	if info, err := doc.Info(); err == nil {
		if title, ok := info["Title"].(pdf.String); ok {
			fmt.Printf("Title:       %s\n", pdf.DecodeTextString(title))
		}
	}
	if pages, err := pagetree.Count(doc); err == nil {
		fmt.Printf("Pages:       %d\n", pages)
	}

	sec := doc.Security
	if sec == nil {
		fmt.Println("Encryption:  none")
		return nil
	}
	fmt.Printf("Encryption:  V%d R%d\n", sec.V, sec.R)
	fmt.Printf("Algorithm:   %s\n", sec.Cipher)
	fmt.Printf("Key Length:  %d bits\n", sec.KeyLength)
	fmt.Printf("Permissions: %s (P=%d)\n", sec.Permissions, sec.P)
	fmt.Printf("Metadata:    %s\n", map[bool]string{true: "encrypted", false: "not encrypted"}[sec.EncryptMetadata])
	fmt.Printf("Access:      %s\n", map[bool]string{true: "owner", false: "user"}[sec.OwnerAuthenticated])
	if len(doc.ID) > 0 {
		fmt.Printf("File ID:     %x\n", doc.ID[0])
	}

	for _, field := range []struct {
		name string
		data []byte
	}{
		{"O", sec.O},
		{"U", sec.U},
		{"OE", sec.OE},
		{"UE", sec.UE},
		{"Perms", sec.Perms},
	} {
		if len(field.data) == 0 {
			continue
		}
		fmt.Printf("\n%s:\n", field.name)
		fmt.Println(hexdump.Dump(field.data))
	}
	return nil
}

func newVerifyCmd() *cobra.Command {
	var opt verify.Options
	cmd := &cobra.Command{
		Use:   "verify FILE",
		Short: "Check that an encrypted PDF file opens with the given passwords",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(args[0], &opt)
		},
	}
	cmd.Flags().StringVarP(&opt.UserPassword, "user-password", "u", "", "user password")
	cmd.Flags().StringVarP(&opt.OwnerPassword, "owner-password", "p", "", "owner password (optional)")
	return cmd
}

func runVerify(fname string, opt *verify.Options) error {
	out := newConsole(os.Stdout)
	report, err := verify.File(fname, opt)
	if err != nil {
		out.Printf("%s... [red]Not verified! %v\n", fname, err)
		return errIncomplete
	}
	out.Printf("%s... [green]Verified\n", fname)
	out.Printf("  %d pages, PDF %s, %s\n", report.Pages, report.Version, report.Security.Cipher)
	switch {
	case report.MetadataErr != nil:
		out.Printf("  [yellow]XMP metadata unreadable: %v\n", report.MetadataErr)
	case report.Metadata != nil:
		out.Printf("  XMP metadata present\n")
	}
	return nil
}
