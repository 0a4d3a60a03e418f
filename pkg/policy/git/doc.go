// Package git feeds policy bundles from a git repository into a bundle
// registry.
//
// The repository holds one directory per tenant with one file per bundle
// version, the same layout the bundle directory watcher uses:
//
//	{path}/{tenant}/{version}.yaml
//
// Source clones the repository, publishes every bundle file, and then
// polls the branch. After each pull only files touched by the new commits
// are candidates for activation, so history rewrites of old versions never
// move a tenant's active pointer backwards.
//
//	repo, err := git.NewRepository(&cfg.Bundles.Git)
//	src := git.NewSource(repo, registry, cfg.Bundles.Git.PollInterval, cfg.Bundles.Git.Activate)
//	if _, err := src.Sync(ctx); err != nil {
//		return err
//	}
//	go src.Run(ctx)
//
// Credentials come from token (HTTPS basic auth) or an SSH key file.
package git
