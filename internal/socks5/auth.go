package socks5

import "crypto/subtle"

// selectMethod applies the policy table from spec §4.3 against the
// client's advertised methods and the server configuration: it picks the
// first of cfg.OfferedMethods() (in the server's preference order) that
// the client also advertised.
func selectMethod(offered []byte, cfg Config) byte {
	has := func(m byte) bool {
		for _, o := range offered {
			if o == m {
				return true
			}
		}
		return false
	}

	for _, m := range cfg.OfferedMethods() {
		if has(m) {
			return m
		}
	}
	return MethodNoAcceptable
}

// checkCredentials compares UNAME and PASSWD byte-wise against the
// configured pair in constant time, to avoid leaking a timing signal for
// however many leading bytes matched.
func checkCredentials(cfg Config, username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(cfg.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(cfg.Password)) == 1
	return userOK && passOK
}
