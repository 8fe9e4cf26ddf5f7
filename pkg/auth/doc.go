// Package auth stores session cookies and establishes an authenticated
// client for a pipeline run.
//
// Cookies live in the system keychain when one is available, otherwise in an
// AES-GCM encrypted file; TWPIPELINE_AUTH_TOKEN and TWPIPELINE_CSRF_TOKEN are
// read as a last resort. Authenticator.EnsureAuthenticated tries the stored
// cookies, then the ones in configuration, and verifies whichever it uses.
package auth
