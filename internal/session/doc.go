// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session keeps the signed-in account between runs.
//
// The bearer token and account returned by login or register are written
// to session.json in the data directory with 0600 permissions. When
// sealing is enabled the record is encrypted with NaCl secretbox under a
// random key kept next to it in credentials.key.
//
// # Key Types
//
//   - Manager: current credentials, implements api.Credentials
//   - Config: storage location and sealing options
//
// # Usage
//
//	mgr, err := session.Open(session.Config{Dir: dataDir, Seal: true})
//	if err != nil {
//	    return err
//	}
//	client := api.NewClient(url).WithCredentials(mgr)
//
//	res, err := client.Login(ctx, email, password)
//	if err == nil {
//	    err = mgr.Save(res)
//	}
//
// A rejected token ends the session:
//
//	ctl.OnAuthExpired(mgr.Expire)
package session
