package domain

// Merge rules: an incoming integer overrides only when non-zero and an
// incoming string only when non-empty. Zero and empty mean "no override",
// so an explicit zero can not be pushed through a merge.

func mergeInt[T ~int](dst *T, src T) {
	if src != 0 {
		*dst = src
	}
}

func mergeStr(dst *string, src string, max int) {
	if src != "" {
		*dst = Truncate(src, max)
	}
}

func mergeList(dst *[]string, src []string) {
	if len(src) > 0 {
		*dst = append([]string(nil), src...)
	}
}

func mergeAuth(dst *AuthConfig, src *AuthConfig) {
	mergeStr(&dst.Username, src.Username, AuthStrMaxLen)
	mergeStr(&dst.Password, src.Password, AuthStrMaxLen)
	mergeInt(&dst.PasswordLength, src.PasswordLength)
	mergeStr(&dst.UsernameIn, src.UsernameIn, AuthStrMaxLen)
	mergeStr(&dst.PasswordIn, src.PasswordIn, AuthStrMaxLen)
	mergeInt(&dst.PasswordLengthIn, src.PasswordLengthIn)
}

func mergeTimeouts(dst *ConnTimeouts, src *ConnTimeouts) {
	mergeInt(&dst.Login, src.Login)
	mergeInt(&dst.Auth, src.Auth)
	mergeInt(&dst.Active, src.Active)
	mergeInt(&dst.Idle, src.Idle)
	mergeInt(&dst.Ping, src.Ping)
}

// Merge folds the present fields of in into r
func (r *DiscoveryRecord) Merge(in *DiscoveryRecord) {
	mergeInt(&r.Startup, in.Startup)
	mergeInt(&r.Type, in.Type)

	st, ist := &r.SendTargets, &in.SendTargets
	mergeStr(&st.Address, ist.Address, AddressMaxLen)
	mergeInt(&st.Port, ist.Port)
	mergeInt(&st.Continuous, ist.Continuous)
	mergeInt(&st.SendAsyncText, ist.SendAsyncText)
	mergeInt(&st.Auth.Method, ist.Auth.Method)
	mergeAuth(&st.Auth, &ist.Auth)
	mergeTimeouts(&st.Timeouts, &ist.Timeouts)

	slp, islp := &r.SLP, &in.SLP
	mergeList(&slp.Interfaces, islp.Interfaces)
	mergeList(&slp.Scopes, islp.Scopes)
	mergeInt(&slp.PollInterval, islp.PollInterval)
	mergeInt(&slp.Auth.Method, islp.Auth.Method)
	mergeAuth(&slp.Auth, &islp.Auth)
}

// Merge folds the present fields of in into r. Every connection slot is
// considered, whatever the active connection count says.
func (r *NodeRecord) Merge(in *NodeRecord) {
	mergeStr(&r.Name, in.Name, TargetNameMaxLen)
	mergeInt(&r.TPGT, in.TPGT)
	mergeInt(&r.Startup, in.Startup)

	s, is := &r.Session, &in.Session
	mergeInt(&s.InitialCmdSN, is.InitialCmdSN)
	mergeAuth(&s.Auth, &is.Auth)
	mergeInt(&s.ReplacementTimeout, is.ReplacementTimeout)
	mergeInt(&s.AbortTimeout, is.AbortTimeout)
	mergeInt(&s.ResetTimeout, is.ResetTimeout)
	mergeInt(&s.ISCSI.InitialR2T, is.ISCSI.InitialR2T)
	mergeInt(&s.ISCSI.ImmediateData, is.ISCSI.ImmediateData)
	mergeInt(&s.ISCSI.FirstBurstLength, is.ISCSI.FirstBurstLength)
	mergeInt(&s.ISCSI.MaxBurstLength, is.ISCSI.MaxBurstLength)
	mergeInt(&s.ISCSI.DefaultTime2Wait, is.ISCSI.DefaultTime2Wait)
	mergeInt(&s.ISCSI.DefaultTime2Retain, is.ISCSI.DefaultTime2Retain)

	for i := range r.Conns {
		c, ic := &r.Conns[i], &in.Conns[i]
		mergeStr(&c.Address, ic.Address, AddressMaxLen)
		mergeInt(&c.Port, ic.Port)
		mergeInt(&c.Startup, ic.Startup)
		mergeInt(&c.TCP.WindowSize, ic.TCP.WindowSize)
		mergeInt(&c.TCP.TypeOfService, ic.TCP.TypeOfService)
		mergeTimeouts(&c.Timeouts, &ic.Timeouts)
		mergeInt(&c.ISCSI.MaxRecvDataSegmentLength, ic.ISCSI.MaxRecvDataSegmentLength)
		mergeInt(&c.ISCSI.HeaderDigest, ic.ISCSI.HeaderDigest)
		mergeInt(&c.ISCSI.DataDigest, ic.ISCSI.DataDigest)
	}
}
