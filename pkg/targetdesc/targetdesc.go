// Package targetdesc serves the static qXfer:features:read:target.xml
// blob GDB uses to learn the Cortex-M register file, including the FPU
// single-precision registers and FPSCR. See spec §6's "Target description".
package targetdesc

// XML is the fixed target description. Register numbers match the 'p'/'P'
// packet index map in pkg/armdbg: r0-r12/sp/lr/pc as 0-15, xpsr at 0x19,
// msp/psp/control/faultmask/basepri/primask at 0x1A-0x1F, s0-s31 at
// 0x20-0x3F, fpscr at 0x40.
const XML = `<?xml version="1.0"?>
<!DOCTYPE target SYSTEM "gdb-target.dtd">
<target version="1.0">
<feature name="org.gnu.gdb.arm.m-profile">
<reg name="r0" bitsize="32" regnum="0" save-restore="yes" type="int" group="general"/>
<reg name="r1" bitsize="32" regnum="1" save-restore="yes" type="int" group="general"/>
<reg name="r2" bitsize="32" regnum="2" save-restore="yes" type="int" group="general"/>
<reg name="r3" bitsize="32" regnum="3" save-restore="yes" type="int" group="general"/>
<reg name="r4" bitsize="32" regnum="4" save-restore="yes" type="int" group="general"/>
<reg name="r5" bitsize="32" regnum="5" save-restore="yes" type="int" group="general"/>
<reg name="r6" bitsize="32" regnum="6" save-restore="yes" type="int" group="general"/>
<reg name="r7" bitsize="32" regnum="7" save-restore="yes" type="int" group="general"/>
<reg name="r8" bitsize="32" regnum="8" save-restore="yes" type="int" group="general"/>
<reg name="r9" bitsize="32" regnum="9" save-restore="yes" type="int" group="general"/>
<reg name="r10" bitsize="32" regnum="10" save-restore="yes" type="int" group="general"/>
<reg name="r11" bitsize="32" regnum="11" save-restore="yes" type="int" group="general"/>
<reg name="r12" bitsize="32" regnum="12" save-restore="yes" type="int" group="general"/>
<reg name="sp" bitsize="32" regnum="13" save-restore="yes" type="data_ptr" group="general"/>
<reg name="lr" bitsize="32" regnum="14" save-restore="yes" type="int" group="general"/>
<reg name="pc" bitsize="32" regnum="15" save-restore="yes" type="code_ptr" group="general"/>
<reg name="xpsr" bitsize="32" regnum="25" save-restore="yes" type="int" group="general"/>
<reg name="msp" bitsize="32" regnum="26" save-restore="yes" type="data_ptr" group="general"/>
<reg name="psp" bitsize="32" regnum="27" save-restore="yes" type="data_ptr" group="general"/>
<reg name="control" bitsize="8" regnum="28" save-restore="yes" type="int" group="general"/>
<reg name="faultmask" bitsize="8" regnum="29" save-restore="yes" type="int" group="general"/>
<reg name="basepri" bitsize="8" regnum="30" save-restore="yes" type="int" group="general"/>
<reg name="primask" bitsize="8" regnum="31" save-restore="yes" type="int" group="general"/>
</feature>
<feature name="org.gnu.gdb.arm.vfp">
<reg name="s0" bitsize="32" regnum="32" type="float" group="float"/>
<reg name="s1" bitsize="32" regnum="33" type="float" group="float"/>
<reg name="s2" bitsize="32" regnum="34" type="float" group="float"/>
<reg name="s3" bitsize="32" regnum="35" type="float" group="float"/>
<reg name="s4" bitsize="32" regnum="36" type="float" group="float"/>
<reg name="s5" bitsize="32" regnum="37" type="float" group="float"/>
<reg name="s6" bitsize="32" regnum="38" type="float" group="float"/>
<reg name="s7" bitsize="32" regnum="39" type="float" group="float"/>
<reg name="s8" bitsize="32" regnum="40" type="float" group="float"/>
<reg name="s9" bitsize="32" regnum="41" type="float" group="float"/>
<reg name="s10" bitsize="32" regnum="42" type="float" group="float"/>
<reg name="s11" bitsize="32" regnum="43" type="float" group="float"/>
<reg name="s12" bitsize="32" regnum="44" type="float" group="float"/>
<reg name="s13" bitsize="32" regnum="45" type="float" group="float"/>
<reg name="s14" bitsize="32" regnum="46" type="float" group="float"/>
<reg name="s15" bitsize="32" regnum="47" type="float" group="float"/>
<reg name="s16" bitsize="32" regnum="48" type="float" group="float"/>
<reg name="s17" bitsize="32" regnum="49" type="float" group="float"/>
<reg name="s18" bitsize="32" regnum="50" type="float" group="float"/>
<reg name="s19" bitsize="32" regnum="51" type="float" group="float"/>
<reg name="s20" bitsize="32" regnum="52" type="float" group="float"/>
<reg name="s21" bitsize="32" regnum="53" type="float" group="float"/>
<reg name="s22" bitsize="32" regnum="54" type="float" group="float"/>
<reg name="s23" bitsize="32" regnum="55" type="float" group="float"/>
<reg name="s24" bitsize="32" regnum="56" type="float" group="float"/>
<reg name="s25" bitsize="32" regnum="57" type="float" group="float"/>
<reg name="s26" bitsize="32" regnum="58" type="float" group="float"/>
<reg name="s27" bitsize="32" regnum="59" type="float" group="float"/>
<reg name="s28" bitsize="32" regnum="60" type="float" group="float"/>
<reg name="s29" bitsize="32" regnum="61" type="float" group="float"/>
<reg name="s30" bitsize="32" regnum="62" type="float" group="float"/>
<reg name="s31" bitsize="32" regnum="63" type="float" group="float"/>
<reg name="fpscr" bitsize="32" regnum="64" type="int" group="float"/>
</feature>
</target>
`
