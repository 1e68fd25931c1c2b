// Package russh provides a client for remote command execution and file
// transfer over SSH.
//
// This package provides:
//   - A session client with multi-credential authentication and fallback
//     (private key first, then password)
//   - Command execution handles with independent stdin/stdout/stderr stream
//     views and lazy exit-status collection
//   - An SFTP client emulating a working directory over a protocol that has
//     none, with directory/file operations and whole-file get/put
//   - A unified error taxonomy translating transport, subsystem, and local
//     I/O failures at every boundary
//
// # Basic Usage
//
// Connect and run a command:
//
//	client := russh.NewClient()
//	err := client.Connect(russh.Config{
//		Host: "example.com",
//		User: "deploy",
//		Auth: russh.AuthMethods{
//			PrivateKey: &russh.PrivateKeyAuth{Path: "~/.ssh/id_ed25519"},
//		},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	cmd, err := client.ExecCommand("uname -a")
//	if err != nil {
//		log.Fatal(err)
//	}
//	out, _ := cmd.ReadStdout()
//	code, _ := cmd.ExitStatus()
//
// # File Transfer
//
// Open the SFTP subsystem for filesystem operations:
//
//	sftp, err := client.OpenSFTP()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sftp.Close()
//
//	if err := sftp.Chdir("/var/www"); err != nil {
//		log.Fatal(err)
//	}
//	err = sftp.Put("/local/release.tar.gz", "release.tar.gz")
//
// # Errors
//
// Every failure carries an ErrorKind; use KindOf to branch on it:
//
//	if err := sftp.Chdir("/no/such/dir"); russh.KindOf(err) == russh.KindNotFound {
//		// handle missing directory
//	}
package russh
