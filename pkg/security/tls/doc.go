/*
Package tls builds the server-side TLS configuration for the warden HTTP
server.

Certificates are served through a Reloader so renewed certificate files
are picked up without a restart. The reloader polls file modification
times; a pair that fails to load keeps the previous certificate in
service.

	reloader := tls.NewReloader(cfg.CertFile, cfg.KeyFile, cfg.ReloadInterval)
	if err := reloader.Start(ctx); err != nil {
		return err
	}
	tlsCfg, err := tls.ServerConfig(&cfg, reloader)

Client certificates are verified against ClientCAFile when ClientAuth is
"require" or "verify_if_given". TLS 1.0 and 1.1 are never accepted.
*/
package tls
